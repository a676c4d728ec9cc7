// Package store wraps the external beads database behind the accessors the
// dashboard core needs: snapshot reads, the change counter, audit events
// past a cursor, and the validated transition write path.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/beadboard/beadboard/internal/bead"
	"github.com/beadboard/beadboard/internal/db"
	"github.com/beadboard/beadboard/internal/models"
	"github.com/beadboard/beadboard/internal/repair"
	"github.com/beadboard/beadboard/internal/staleness"
)

// ErrNotFound is returned when a bead id has no record.
var ErrNotFound = errors.New("store: bead not found")

// Store is the single shared read/write path onto the beads database. The
// bd CLI mutates the same database from outside the process; reads here are
// not transactionally isolated from it and do not need to be.
type Store struct {
	handle *gorm.DB
	actor  string
}

// New wraps an open database handle. actor is recorded on audit events the
// dashboard writes.
func New(handle *gorm.DB, actor string) *Store {
	if actor == "" {
		actor = "beadboard"
	}
	return &Store{handle: handle, actor: actor}
}

// Handle exposes the underlying database handle for migrations and doctor
// checks.
func (s *Store) Handle() *gorm.DB { return s.handle }

// Snapshot returns the full current issue set, newest first, excluding
// tombstones. Tombstoned beads stay in the database forever but have no
// place on a board.
func (s *Store) Snapshot(ctx context.Context) ([]models.Bead, error) {
	var beads []models.Bead
	err := s.handle.WithContext(ctx).
		Where("status != ?", bead.StatusTombstone).
		Order("created_at DESC").
		Find(&beads).Error
	if err != nil {
		return nil, fmt.Errorf("store: snapshot: %w", err)
	}
	return beads, nil
}

// AllRecords returns every persisted record, tombstones included. The
// repair engine wants the whole set.
func (s *Store) AllRecords(ctx context.Context) ([]models.Bead, error) {
	var beads []models.Bead
	if err := s.handle.WithContext(ctx).Order("id ASC").Find(&beads).Error; err != nil {
		return nil, fmt.Errorf("store: all records: %w", err)
	}
	return beads, nil
}

// Get retrieves one bead by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Bead, error) {
	var b models.Bead
	err := s.handle.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return &b, nil
}

// Dependencies returns the edges touching a bead, both directions.
func (s *Store) Dependencies(ctx context.Context, id string) ([]models.Dependency, error) {
	var deps []models.Dependency
	err := s.handle.WithContext(ctx).
		Where("issue_id = ? OR depends_on_id = ?", id, id).
		Find(&deps).Error
	if err != nil {
		return nil, fmt.Errorf("store: dependencies of %s: %w", id, err)
	}
	return deps, nil
}

// Version reads the store's monotonic change counter.
func (s *Store) Version(ctx context.Context) (int64, error) {
	return db.DataVersion(s.handle.WithContext(ctx))
}

// EventsSince returns audit events with created_at strictly greater than
// since, oldest first, capped at limit. since may be empty to read from the
// beginning. RFC 3339 timestamps order lexicographically, which is what
// makes the string cursor sound.
func (s *Store) EventsSince(ctx context.Context, since string, limit int) ([]models.Event, error) {
	q := s.handle.WithContext(ctx).Order("created_at ASC, id ASC").Limit(limit)
	if since != "" {
		q = q.Where("created_at > ?", since)
	}
	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("store: events since %q: %w", since, err)
	}
	return events, nil
}

// RecentEvents returns the newest events for one bead, newest first.
func (s *Store) RecentEvents(ctx context.Context, id string, limit int) ([]models.Event, error) {
	var events []models.Event
	err := s.handle.WithContext(ctx).
		Where("issue_id = ?", id).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("store: recent events of %s: %w", id, err)
	}
	return events, nil
}

// StatusCount holds a status and its bead count.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// StatusCounts returns bead counts grouped by status, tombstones excluded.
func (s *Store) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := s.handle.WithContext(ctx).Model(&models.Bead{}).
		Select("status, COUNT(*) as count").
		Where("status != ?", bead.StatusTombstone).
		Group("status").
		Order("status ASC").
		Find(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("store: status counts: %w", err)
	}
	return counts, nil
}

// ApplyTransition validates the requested transition and, when accepted,
// persists it: status, touched timestamps, assignee hand-off, execution-log
// embedding, and an audit event. An invalid result is returned without any
// write; it is the caller's contract that nothing persists when Valid is
// false. Two racing requests on the same bead are not serialized here —
// last write wins, as it does for the bd CLI itself.
func (s *Store) ApplyTransition(ctx context.Context, id, target string, fields map[string]string) (bead.TransitionResult, *models.Bead, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return bead.TransitionResult{}, nil, err
	}

	result := bead.ValidateTransition(current.Status, target, fields)
	if !result.Valid {
		return result, current, nil
	}

	from := bead.NormalizeStatus(current.Status)
	to := bead.NormalizeStatus(target)
	now := time.Now().UTC().Format(time.RFC3339)

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	switch to {
	case bead.StatusClosed:
		updates["closed_at"] = now
	case bead.StatusOpen:
		if from == bead.StatusClosed {
			updates["closed_at"] = "" // reopened
		}
	}

	if agent := fields[bead.FieldAgentID]; agent != "" {
		updates["assignee"] = bead.NormalizeAssignee(agent)
	}

	if notes, changed := transitionNotes(current.Notes, to, fields); changed {
		updates["notes"] = notes
	}

	err = s.handle.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Bead{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("update %s: %w", id, err)
		}
		event := models.Event{
			IssueID:   id,
			EventType: models.EventStatusChanged,
			Actor:     s.actor,
			OldValue:  from,
			NewValue:  to,
			CreatedAt: now,
		}
		if branch := fields[bead.FieldBranchName]; branch != "" {
			event.Comment = "branch " + branch
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("append event for %s: %w", id, err)
		}
		return db.BumpMetadataVersion(tx)
	})
	if err != nil {
		return bead.TransitionResult{}, nil, fmt.Errorf("store: apply transition %s → %s on %s: %w", from, to, id, err)
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return result, nil, err
	}
	return result, updated, nil
}

// transitionNotes embeds or updates the execution-log block for the
// transitions that carry work context. Reports whether notes changed.
func transitionNotes(notes, to string, fields map[string]string) (string, bool) {
	switch to {
	case bead.StatusInProgress:
		if fields[bead.FieldBranchName] == "" && fields[bead.FieldAgentID] == "" {
			return notes, false
		}
		block, _ := bead.ParseExecutionLog(notes)
		if v := fields[bead.FieldBranchName]; v != "" {
			block.Branch = v
		}
		if v := fields[bead.FieldAgentID]; v != "" {
			block.Agent = bead.NormalizeAssignee(v)
		}
		return bead.AppendExecutionLog(notes, block), true
	case bead.StatusInReview:
		block, _ := bead.ParseExecutionLog(notes)
		if v := fields[bead.FieldCommitHash]; v != "" {
			block.Commit = v
		}
		if v := fields[bead.FieldPRURL]; v != "" {
			block.PRURL = v
		}
		// A re-submitted review round-trip carries the same free-text
		// summary; only append text the notes do not already hold.
		summary := strings.TrimSpace(fields[bead.FieldExecutionLog])
		if summary != "" && !strings.Contains(notes, summary) {
			notes = bead.AppendExecutionLog(notes, block)
			return notes + "\n\n" + summary, true
		}
		return bead.AppendExecutionLog(notes, block), true
	}
	return notes, false
}

// ScanRepairs runs the repair engine in dry-run mode over every record.
func (s *Store) ScanRepairs(ctx context.Context) (repair.Summary, error) {
	records, err := s.AllRecords(ctx)
	if err != nil {
		return repair.Summary{}, err
	}
	return repair.Scan(records), nil
}

// ApplyRepairs runs the repair engine and persists every repaired record,
// appending one audit event per affected bead.
func (s *Store) ApplyRepairs(ctx context.Context) (repair.Summary, error) {
	records, err := s.AllRecords(ctx)
	if err != nil {
		return repair.Summary{}, err
	}
	summary := repair.Apply(records)
	if summary.IssuesRepaired == 0 {
		return summary, nil
	}

	byID := make(map[string]*models.Bead, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}
	repairedIDs := make(map[string]bool)
	for _, r := range summary.Repairs {
		repairedIDs[r.IssueID] = true
	}

	now := time.Now().UTC().Format(time.RFC3339)
	err = s.handle.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id := range repairedIDs {
			b := byID[id]
			if b == nil {
				continue
			}
			if err := tx.Model(&models.Bead{}).Where("id = ?", id).Updates(map[string]interface{}{
				"title":      b.Title,
				"status":     b.Status,
				"assignee":   b.Assignee,
				"created_at": b.CreatedAt,
				"updated_at": b.UpdatedAt,
				"closed_at":  b.ClosedAt,
			}).Error; err != nil {
				return fmt.Errorf("persist repair of %s: %w", id, err)
			}
			if err := tx.Create(&models.Event{
				IssueID:   id,
				EventType: models.EventRepaired,
				Actor:     s.actor,
				Comment:   "automated repair pass",
				CreatedAt: now,
			}).Error; err != nil {
				return fmt.Errorf("append repair event for %s: %w", id, err)
			}
		}
		return db.BumpMetadataVersion(tx)
	})
	if err != nil {
		return summary, fmt.Errorf("store: apply repairs: %w", err)
	}
	return summary, nil
}

// StaleFindings runs staleness detection over the current snapshot and
// attaches each flagged bead's latest audit event.
func (s *Store) StaleFindings(ctx context.Context, t staleness.Thresholds) ([]staleness.Finding, error) {
	beads, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	findings := staleness.Detect(beads, nil, time.Now(), t)
	for i := range findings {
		events, err := s.RecentEvents(ctx, findings[i].Bead.ID, 1)
		if err != nil {
			return nil, err
		}
		if len(events) > 0 {
			findings[i].LastEvent = &events[0]
		}
	}
	return findings, nil
}
