// Package repair detects and fixes known classes of legacy corruption in
// persisted bead records: timestamps without an offset, legacy status
// synonyms, assignees missing the @ sigil, and missing titles.
package repair

import (
	"fmt"
	"strings"

	"github.com/beadboard/beadboard/internal/bead"
	"github.com/beadboard/beadboard/internal/models"
)

// Record describes one corrective change to one field of one bead.
type Record struct {
	Field       string `json:"field"`
	IssueID     string `json:"issue_id"`
	OldValue    string `json:"old_value"`
	NewValue    string `json:"new_value"`
	Description string `json:"description"`
}

// Summary is the outcome of one scan or apply pass. IssuesRepaired counts
// distinct bead ids, not repair records; a single bead can accumulate
// several records in one pass.
type Summary struct {
	TotalIssuesScanned int      `json:"total_issues_scanned"`
	IssuesRepaired     int      `json:"issues_repaired"`
	Repairs            []Record `json:"repairs"`
	Errors             []string `json:"errors"`
}

// Scan computes the repairs the record set needs without touching it.
func Scan(beads []models.Bead) Summary {
	return run(beads, false)
}

// Apply computes the same repairs as Scan and writes the normalized values
// back into the slice. Persisting the mutated records is the caller's job.
// Applying twice over already-repaired data yields zero further repairs.
func Apply(beads []models.Bead) Summary {
	return run(beads, true)
}

func run(beads []models.Bead, apply bool) Summary {
	summary := Summary{TotalIssuesScanned: len(beads)}
	repaired := make(map[string]bool)

	for i := range beads {
		records, err := repairOne(&beads[i], apply)
		if err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			continue
		}
		if len(records) > 0 {
			repaired[beads[i].ID] = true
			summary.Repairs = append(summary.Repairs, records...)
		}
	}

	summary.IssuesRepaired = len(repaired)
	return summary
}

// repairOne detects every applicable corruption class on one record. A
// panic during detection is converted to an error so one bad record can
// never abort the batch.
func repairOne(b *models.Bead, apply bool) (records []Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("repair %s: %v", b.ID, r)
		}
	}()

	fix := func(field, oldValue, newValue, description string) {
		records = append(records, Record{
			Field:       field,
			IssueID:     b.ID,
			OldValue:    oldValue,
			NewValue:    newValue,
			Description: description,
		})
	}

	repairTimestamp := func(field string, value *string) {
		ts := bead.ValidateTimestamp(*value)
		if !ts.Valid || ts.Warning == "" {
			return
		}
		normalized := bead.NormalizeTimestamp(*value)
		fix(field, *value, normalized,
			fmt.Sprintf("appended default UTC offset %s", bead.DefaultUTCOffset))
		if apply {
			*value = normalized
		}
	}
	if b.CreatedAt != "" {
		repairTimestamp("created_at", &b.CreatedAt)
	}
	if b.UpdatedAt != "" {
		repairTimestamp("updated_at", &b.UpdatedAt)
	}
	if b.ClosedAt != "" {
		repairTimestamp("closed_at", &b.ClosedAt)
	}

	if b.Status != "" && bead.IsValidStatus(b.Status) {
		if canonical := bead.NormalizeStatus(b.Status); canonical != b.Status {
			// "OPEN" is a casing problem, "done" is a synonym from the old
			// schema; the description should say which one was found.
			description := fmt.Sprintf("mapped legacy status %q to %q", b.Status, canonical)
			if strings.EqualFold(strings.TrimSpace(b.Status), canonical) {
				description = fmt.Sprintf("normalized status %q to canonical %q", b.Status, canonical)
			}
			fix("status", b.Status, canonical, description)
			if apply {
				b.Status = canonical
			}
		}
	}

	if b.Assignee != "" {
		if normalized := bead.NormalizeAssignee(b.Assignee); normalized != b.Assignee {
			fix("assignee", b.Assignee, normalized, "added missing @ prefix")
			if apply {
				b.Assignee = normalized
			}
		}
	}

	if strings.TrimSpace(b.Title) == "" {
		placeholder := fmt.Sprintf("Untitled (%s)", b.ID)
		fix("title", b.Title, placeholder,
			"fabricated placeholder title so the bead stays displayable; content did not exist before")
		if apply {
			b.Title = placeholder
		}
	}

	return records, nil
}
