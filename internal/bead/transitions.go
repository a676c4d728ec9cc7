package bead

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ValidTransitions maps each status to its valid next statuses. The primary
// workflow is open → ready → in_progress → in_review → closed; closed → open
// is the only path back to active life, and tombstone is terminal.
var ValidTransitions = map[string][]string{
	StatusOpen:       {StatusReady, StatusBlocked, StatusDeferred, StatusTombstone},
	StatusReady:      {StatusInProgress, StatusOpen, StatusBlocked, StatusDeferred},
	StatusInProgress: {StatusInReview, StatusReady, StatusOpen, StatusBlocked},
	StatusInReview:   {StatusClosed, StatusInProgress, StatusBlocked},
	StatusClosed:     {StatusOpen},
	StatusBlocked:    {StatusOpen, StatusReady, StatusInProgress},
	StatusDeferred:   {StatusOpen, StatusReady},
	StatusTombstone:  {},
}

// Extra field names a transition demands, in the order the UI should
// prompt for them.
const (
	FieldBranchName   = "branch_name"
	FieldAgentID      = "agent_id"
	FieldCommitHash   = "commit_hash"
	FieldExecutionLog = "execution_log"
	FieldPRURL        = "pr_url"
)

// transitionRequirements maps a (from, to) pair to the fields that must be
// present and non-blank before the transition is accepted. Only the two
// hand-off points in the primary workflow carry requirements.
var transitionRequirements = map[[2]string][]string{
	{StatusReady, StatusInProgress}:    {FieldBranchName, FieldAgentID},
	{StatusInProgress, StatusInReview}: {FieldCommitHash, FieldExecutionLog},
}

var commitHashPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// TransitionResult is the outcome of validating one requested transition.
type TransitionResult struct {
	Valid         bool     `json:"valid"`
	Error         string   `json:"error,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Warnings      []Issue  `json:"warnings,omitempty"`
}

// IsValidTransition reports whether from → to is in the legal graph.
// Legacy status synonyms are mapped to canonical values first.
func IsValidTransition(from, to string) bool {
	from, to = canonicalStatus(from), canonicalStatus(to)
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// ValidTargetStatuses returns the allowed targets from a status, for UI
// affordances like disabling illegal dropdown options. The returned slice
// is a copy.
func ValidTargetStatuses(from string) []string {
	targets := ValidTransitions[canonicalStatus(from)]
	out := make([]string, len(targets))
	copy(out, targets)
	return out
}

// TransitionRequiresModal reports whether from → to carries a field
// requirement, i.e. the UI must collect extra input before submitting.
func TransitionRequiresModal(from, to string) bool {
	_, ok := transitionRequirements[[2]string{canonicalStatus(from), canonicalStatus(to)}]
	return ok
}

// ValidateTransition checks a requested transition against the rule table
// and its field requirements. Fields may be nil when the transition carries
// no requirement. Whitespace-only values count as missing. Side-channel
// format findings (commit hash shape, PR URL host) surface as warnings; an
// unparseable pr_url is the one format problem that blocks.
func ValidateTransition(from, to string, fields map[string]string) TransitionResult {
	cFrom, cTo := canonicalStatus(from), canonicalStatus(to)

	if !IsValidTransition(cFrom, cTo) {
		targets := ValidTransitions[cFrom]
		var hint string
		if len(targets) == 0 {
			hint = fmt.Sprintf("%q has no valid targets", cFrom)
		} else {
			hint = fmt.Sprintf("valid targets from %q: %s", cFrom, strings.Join(targets, ", "))
		}
		return TransitionResult{
			Error: fmt.Sprintf("Invalid transition from %q to %q; %s", cFrom, cTo, hint),
		}
	}

	var missing []string
	for _, name := range transitionRequirements[[2]string{cFrom, cTo}] {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return TransitionResult{
			Error:         fmt.Sprintf("missing required fields for %s → %s: %s", cFrom, cTo, strings.Join(missing, ", ")),
			MissingFields: missing,
		}
	}

	result := TransitionResult{Valid: true}

	if hash := strings.TrimSpace(fields[FieldCommitHash]); hash != "" && !commitHashPattern.MatchString(hash) {
		result.Warnings = append(result.Warnings, Issue{
			Field:   FieldCommitHash,
			Message: fmt.Sprintf("commit hash %q does not look like a 7-40 char hex hash", hash),
		})
	}

	if raw := strings.TrimSpace(fields[FieldPRURL]); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return TransitionResult{
				Error: fmt.Sprintf("pr_url %q is not a valid URL", raw),
			}
		}
		if !recognizedPRHost(u) {
			result.Warnings = append(result.Warnings, Issue{
				Field:   FieldPRURL,
				Message: fmt.Sprintf("pr_url %q is not a recognized github.com or gitlab.com PR path", raw),
			})
		}
	}

	return result
}

// recognizedPRHost reports whether u points at a GitHub pull request or a
// GitLab merge request.
func recognizedPRHost(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "github.com" || strings.HasSuffix(host, ".github.com"):
		return strings.Contains(u.Path, "/pull/")
	case host == "gitlab.com" || strings.HasSuffix(host, ".gitlab.com"):
		return strings.Contains(u.Path, "/merge_requests/")
	}
	return false
}
