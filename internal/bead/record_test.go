package bead

import (
	"strings"
	"testing"

	"github.com/beadboard/beadboard/internal/models"
)

func validBead() *models.Bead {
	return &models.Bead{
		ID:        "bd-1a2b",
		Title:     "Wire the flux capacitor",
		Status:    "open",
		CreatedAt: "2026-01-19T10:00:00Z",
		UpdatedAt: "2026-01-19T10:00:00Z",
	}
}

func TestValidateBead_Valid(t *testing.T) {
	got := ValidateBead(validBead())
	if !got.Valid {
		t.Fatalf("expected valid, got %+v", got)
	}
	if len(got.Errors) != 0 || len(got.Warnings) != 0 {
		t.Errorf("expected clean result, got %+v", got)
	}
}

func TestValidateBead_MissingIdentity(t *testing.T) {
	b := validBead()
	b.ID = ""
	b.Title = "   "
	got := ValidateBead(b)
	if got.Valid {
		t.Fatal("expected invalid result")
	}
	if len(got.Errors) != 2 {
		t.Fatalf("errors = %+v, want id and title errors", got.Errors)
	}
	fields := []string{got.Errors[0].Field, got.Errors[1].Field}
	if fields[0] != "id" || fields[1] != "title" {
		t.Errorf("error fields = %v, want [id title]", fields)
	}
}

func TestValidateBead_UnknownStatusIsWarning(t *testing.T) {
	b := validBead()
	b.Status = "quarantined"
	got := ValidateBead(b)
	if !got.Valid {
		t.Fatalf("unknown status should not block, got %+v", got)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Field != "status" {
		t.Errorf("want one status warning, got %+v", got.Warnings)
	}
}

func TestValidateBead_LegacyStatusAccepted(t *testing.T) {
	b := validBead()
	b.Status = "DONE"
	got := ValidateBead(b)
	if !got.Valid || len(got.Warnings) != 0 {
		t.Errorf("legacy synonym should read cleanly, got %+v", got)
	}
}

func TestValidateBead_Timestamps(t *testing.T) {
	b := validBead()
	b.CreatedAt = "not a date"
	got := ValidateBead(b)
	if got.Valid {
		t.Fatal("malformed timestamp should be an error")
	}
	if got.Errors[0].Field != "created_at" {
		t.Errorf("error field = %q, want created_at", got.Errors[0].Field)
	}

	b = validBead()
	b.UpdatedAt = "2026-01-19T10:00:00"
	got = ValidateBead(b)
	if !got.Valid {
		t.Fatalf("missing offset should only warn, got %+v", got)
	}
	if len(got.Warnings) != 1 || !strings.Contains(got.Warnings[0].Message, "timezone") {
		t.Errorf("want a timezone warning, got %+v", got.Warnings)
	}
}

func TestValidateBead_AssigneeSigil(t *testing.T) {
	b := validBead()
	b.Assignee = "executor"
	got := ValidateBead(b)
	if !got.Valid {
		t.Fatalf("missing sigil should only warn, got %+v", got)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Field != "assignee" {
		t.Errorf("want one assignee warning, got %+v", got.Warnings)
	}

	b.Assignee = "@executor"
	if got := ValidateBead(b); len(got.Warnings) != 0 {
		t.Errorf("prefixed assignee should not warn, got %+v", got.Warnings)
	}
}

func TestValidateBead_RoundTrip(t *testing.T) {
	// A record that validates clean must still validate clean after being
	// copied through the persisted field set.
	b := validBead()
	b.Assignee = "@executor"
	b.ClosedAt = ""
	first := ValidateBead(b)
	if !first.Valid {
		t.Fatalf("setup: %+v", first)
	}
	copied := *b
	second := ValidateBead(&copied)
	if !second.Valid {
		t.Errorf("round-tripped record invalid: %+v", second)
	}
}
