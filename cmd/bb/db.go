package main

import (
	"time"

	"github.com/beadboard/beadboard/internal/config"
	"github.com/beadboard/beadboard/internal/db"
	"github.com/beadboard/beadboard/internal/staleness"
	"github.com/beadboard/beadboard/internal/store"
)

// openStore loads config and connects to the beads database it points at.
func openStore(configPath string) (*config.Config, *store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	handle, err := db.Open(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store.New(handle, cfg.Store.Actor), nil
}

// thresholdsFromConfig converts configured hour counts into detector cutoffs.
func thresholdsFromConfig(cfg *config.Config) staleness.Thresholds {
	t := staleness.DefaultThresholds
	t.InProgressWarning = hours(cfg.Staleness.InProgressWarningHours)
	t.InProgressCritical = hours(cfg.Staleness.InProgressCriticalHrs)
	t.InReviewWarning = hours(cfg.Staleness.InReviewWarningHours)
	t.InReviewCritical = hours(cfg.Staleness.InReviewCriticalHours)
	return t
}

func hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}
