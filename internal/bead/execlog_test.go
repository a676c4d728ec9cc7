package bead

import (
	"reflect"
	"strings"
	"testing"
)

func TestExecutionLog_FormatParse(t *testing.T) {
	l := ExecutionLog{
		Branch: "feat/BC-001",
		Agent:  "@executor",
		Commit: "deadbeefcafe",
		PRURL:  "https://github.com/acme/widgets/pull/42",
		Files:  []string{"internal/bead/status.go", "internal/bead/record.go"},
	}

	block := l.Format()
	if !strings.HasPrefix(block, "--- Execution Log ---") {
		t.Errorf("block missing header: %q", block)
	}

	got, ok := ParseExecutionLog(block)
	if !ok {
		t.Fatal("ParseExecutionLog did not find the block")
	}
	if !reflect.DeepEqual(got, l) {
		t.Errorf("round trip = %+v, want %+v", got, l)
	}
}

func TestParseExecutionLog_URLKeepsColons(t *testing.T) {
	block := ExecutionLog{PRURL: "https://gitlab.com/a/b/-/merge_requests/7"}.Format()
	got, ok := ParseExecutionLog(block)
	if !ok || got.PRURL != "https://gitlab.com/a/b/-/merge_requests/7" {
		t.Errorf("PRURL = %q", got.PRURL)
	}
}

func TestParseExecutionLog_Absent(t *testing.T) {
	if _, ok := ParseExecutionLog("just some notes"); ok {
		t.Error("found a block where none exists")
	}
}

func TestAppendExecutionLog(t *testing.T) {
	notes := "Investigated the flaky test.\n"
	out := AppendExecutionLog(notes, ExecutionLog{Commit: "abc1234"})
	if !strings.Contains(out, "Investigated the flaky test.") {
		t.Errorf("original notes lost: %q", out)
	}
	if !strings.Contains(out, "commit: abc1234") {
		t.Errorf("block missing: %q", out)
	}

	// Re-submission replaces the block instead of stacking a second one.
	out = AppendExecutionLog(out, ExecutionLog{Commit: "def5678"})
	if strings.Count(out, "--- Execution Log ---") != 1 {
		t.Errorf("duplicate blocks: %q", out)
	}
	if !strings.Contains(out, "def5678") || strings.Contains(out, "abc1234") {
		t.Errorf("block not replaced: %q", out)
	}
}

func TestAppendExecutionLog_EmptyNotes(t *testing.T) {
	out := AppendExecutionLog("", ExecutionLog{Branch: "feat/x"})
	if !strings.HasPrefix(out, "--- Execution Log ---") {
		t.Errorf("unexpected prefix: %q", out)
	}
}
