// Package bead implements the bead lifecycle: status vocabulary and
// normalization, the transition rule table with its required-field gating,
// record validation, and the execution-log block embedded in notes.
package bead

import "strings"

// Canonical bead statuses.
const (
	StatusOpen       = "open"
	StatusReady      = "ready"
	StatusInProgress = "in_progress"
	StatusInReview   = "in_review"
	StatusClosed     = "closed"
	StatusBlocked    = "blocked"
	StatusDeferred   = "deferred"
	StatusTombstone  = "tombstone"
)

// CanonicalStatuses lists every status the transition table knows about.
var CanonicalStatuses = []string{
	StatusOpen,
	StatusReady,
	StatusInProgress,
	StatusInReview,
	StatusClosed,
	StatusBlocked,
	StatusDeferred,
	StatusTombstone,
}

// legacyStatuses maps synonyms written by an earlier schema version to
// canonical values. Kept separate from the canonical set on purpose; see
// IsValidStatus and NormalizeStatus.
var legacyStatuses = map[string]string{
	"done":    StatusClosed,
	"wip":     StatusInProgress,
	"todo":    StatusOpen,
	"pending": StatusOpen,
	"review":  StatusInReview,
}

var canonicalSet = func() map[string]bool {
	m := make(map[string]bool, len(CanonicalStatuses))
	for _, s := range CanonicalStatuses {
		m[s] = true
	}
	return m
}()

// IsValidStatus reports whether s is a known status, case-insensitively.
// Legacy synonyms (done, wip, todo, pending, review) count as valid so that
// data written by older schema versions still reads cleanly.
func IsValidStatus(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if canonicalSet[s] {
		return true
	}
	_, ok := legacyStatuses[s]
	return ok
}

// NormalizeStatus lower-cases and trims s, maps legacy synonyms to their
// canonical value, and buckets anything unrecognized as "open". Dropping an
// unparseable bead would hide it from human review; mis-filing it under
// open keeps it visible.
func NormalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if canonicalSet[s] {
		return s
	}
	if canonical, ok := legacyStatuses[s]; ok {
		return canonical
	}
	return StatusOpen
}

// canonicalStatus is NormalizeStatus without the open fallback: unknown
// strings come back unchanged so the transition validator can reject them
// by name instead of silently treating them as open.
func canonicalStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if canonical, ok := legacyStatuses[s]; ok {
		return canonical
	}
	return s
}

// NormalizeAssignee trims s and prepends the @ sigil when absent.
// Empty or whitespace-only input yields "", meaning unassigned.
func NormalizeAssignee(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "@") {
		return "@" + s
	}
	return s
}
