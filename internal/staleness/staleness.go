// Package staleness flags beads stuck in an active status too long. It is
// recomputed over the full snapshot on every run; the set is small enough
// that incremental bookkeeping would only buy bugs.
package staleness

import (
	"time"

	"github.com/beadboard/beadboard/internal/bead"
	"github.com/beadboard/beadboard/internal/models"
)

// Severity levels for a stale finding.
const (
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Thresholds holds the age cutoffs per watched status. In-review latency is
// naturally higher than active-work latency, so its cutoffs are longer.
type Thresholds struct {
	InProgressWarning  time.Duration
	InProgressCritical time.Duration
	InReviewWarning    time.Duration
	InReviewCritical   time.Duration
}

// DefaultThresholds are the stock cutoffs.
var DefaultThresholds = Thresholds{
	InProgressWarning:  2 * time.Hour,
	InProgressCritical: 8 * time.Hour,
	InReviewWarning:    24 * time.Hour,
	InReviewCritical:   72 * time.Hour,
}

// Finding is one stale bead, with the most recent matching activity event
// attached for context when one exists.
type Finding struct {
	Bead      models.Bead   `json:"bead"`
	Level     string        `json:"level"`
	Age       time.Duration `json:"age_ns"`
	LastEvent *models.Event `json:"last_event,omitempty"`
}

// Detect scans the snapshot for beads whose updated_at age exceeds the
// thresholds for their status. events is recent activity to attach; a bead
// with no matching event is still a valid finding, flagged purely on age.
// Beads whose updated_at cannot be parsed are skipped; the record validator
// is the place that complains about those.
func Detect(beads []models.Bead, events []models.Event, now time.Time, t Thresholds) []Finding {
	var findings []Finding
	for i := range beads {
		b := beads[i]
		var warning, critical time.Duration
		switch bead.NormalizeStatus(b.Status) {
		case bead.StatusInProgress:
			warning, critical = t.InProgressWarning, t.InProgressCritical
		case bead.StatusInReview:
			warning, critical = t.InReviewWarning, t.InReviewCritical
		default:
			continue
		}

		updated, err := bead.ParseTime(b.UpdatedAt)
		if err != nil {
			continue
		}
		age := now.Sub(updated)
		if age <= warning {
			continue
		}

		level := LevelWarning
		if age > critical {
			level = LevelCritical
		}
		findings = append(findings, Finding{
			Bead:      b,
			Level:     level,
			Age:       age,
			LastEvent: latestEventFor(events, b.ID),
		})
	}
	return findings
}

// latestEventFor returns the newest event for one bead id, by timestamp.
func latestEventFor(events []models.Event, id string) *models.Event {
	var latest *models.Event
	for i := range events {
		e := &events[i]
		if e.IssueID != id {
			continue
		}
		if latest == nil || e.CreatedAt > latest.CreatedAt {
			latest = e
		}
	}
	return latest
}
