// Package notify routes stale-bead findings to outbound chat adapters.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/beadboard/beadboard/internal/logging"
	"github.com/beadboard/beadboard/internal/staleness"
)

// Adapter is one outbound channel. Adapters are best effort; a failed send
// is logged and retried implicitly on the next scan that still flags the
// bead.
type Adapter interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Router fans findings out to every configured adapter, deduplicating by
// (bead id, level) so a bead stuck over a weekend produces one warning and
// one critical alert, not one per scan.
type Router struct {
	adapters []Adapter
	log      zerolog.Logger

	mu       sync.Mutex
	notified map[string]string // bead id → highest level already alerted
}

// NewRouter creates a router over the given adapters. A router with no
// adapters is valid and does nothing.
func NewRouter(adapters ...Adapter) *Router {
	return &Router{
		adapters: adapters,
		log:      logging.Component("notify"),
		notified: make(map[string]string),
	}
}

// Publish sends an alert for every finding not already alerted at its
// level, and forgets beads that are no longer flagged so a relapse alerts
// again.
func (r *Router) Publish(ctx context.Context, findings []staleness.Finding) {
	r.mu.Lock()
	flagged := make(map[string]bool, len(findings))
	var due []staleness.Finding
	for _, f := range findings {
		flagged[f.Bead.ID] = true
		if r.notified[f.Bead.ID] == f.Level {
			continue
		}
		r.notified[f.Bead.ID] = f.Level
		due = append(due, f)
	}
	for id := range r.notified {
		if !flagged[id] {
			delete(r.notified, id)
		}
	}
	r.mu.Unlock()

	for _, f := range due {
		text := FormatAlert(f)
		for _, a := range r.adapters {
			if err := a.Send(ctx, text); err != nil {
				r.log.Warn().Str("adapter", a.Name()).Str("bead", f.Bead.ID).Err(err).Msg("alert send failed")
			}
		}
	}
}

// FormatAlert renders one finding as a chat message.
func FormatAlert(f staleness.Finding) string {
	marker := "⚠️"
	if f.Level == staleness.LevelCritical {
		marker = "🔴"
	}
	text := fmt.Sprintf("%s %s bead %s (%q) has sat in %s for %s",
		marker, f.Level, f.Bead.ID, f.Bead.Title, f.Bead.Status, formatAge(f.Age))
	if f.Bead.Assignee != "" {
		text += ", assigned to " + f.Bead.Assignee
	}
	if f.LastEvent != nil {
		text += fmt.Sprintf("; last activity: %s at %s", f.LastEvent.EventType, f.LastEvent.CreatedAt)
	}
	return text
}

func formatAge(d time.Duration) string {
	if d >= 48*time.Hour {
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	}
	if d >= time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
