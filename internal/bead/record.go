package bead

import (
	"fmt"
	"strings"

	"github.com/beadboard/beadboard/internal/models"
)

// ValidateBead checks one record for structural correctness, independent of
// any transition: required identity fields, known status, timestamp shape,
// assignee convention. Used both to gate writes and by the repair scanner.
func ValidateBead(b *models.Bead) ValidationResult {
	var r ValidationResult

	if strings.TrimSpace(b.ID) == "" {
		r.addError("id", "id is required")
	}
	if strings.TrimSpace(b.Title) == "" {
		r.addError("title", "title is required")
	}

	if b.Status != "" && !IsValidStatus(b.Status) {
		r.addWarning("status", fmt.Sprintf("unknown status %q", b.Status))
	}

	validateTimestampField(&r, "created_at", b.CreatedAt)
	validateTimestampField(&r, "updated_at", b.UpdatedAt)
	validateTimestampField(&r, "closed_at", b.ClosedAt)

	if b.Assignee != "" && !strings.HasPrefix(b.Assignee, "@") {
		r.addWarning("assignee", fmt.Sprintf("assignee %q is missing the @ prefix", b.Assignee))
	}

	return r.finish()
}

// validateTimestampField folds one timestamp's findings into the record
// result. Absent fields are fine; only values that are present get checked.
func validateTimestampField(r *ValidationResult, field, value string) {
	if value == "" {
		return
	}
	ts := ValidateTimestamp(value)
	if ts.Error != "" {
		r.addError(field, ts.Error)
		return
	}
	if ts.Warning != "" {
		r.addWarning(field, ts.Warning)
	}
}
