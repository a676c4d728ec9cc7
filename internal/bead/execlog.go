package bead

import (
	"strings"
)

// Execution-log block delimiters inside a bead's notes field.
const (
	execLogHeader = "--- Execution Log ---"
	execLogFooter = "--- End Execution Log ---"
)

// ExecutionLog is the structured block embedded in notes once a bead
// reaches in_review: where the work happened and how to find it.
type ExecutionLog struct {
	Branch string   `json:"branch,omitempty"`
	Agent  string   `json:"agent,omitempty"`
	Commit string   `json:"commit,omitempty"`
	PRURL  string   `json:"pr_url,omitempty"`
	Files  []string `json:"files,omitempty"`
}

// Format renders the block deterministically: fixed key order, one file per
// line. Empty fields are omitted.
func (l ExecutionLog) Format() string {
	var b strings.Builder
	b.WriteString(execLogHeader)
	b.WriteByte('\n')
	writeField := func(key, value string) {
		if value != "" {
			b.WriteString(key)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteByte('\n')
		}
	}
	writeField("branch", l.Branch)
	writeField("agent", l.Agent)
	writeField("commit", l.Commit)
	writeField("pr", l.PRURL)
	if len(l.Files) > 0 {
		b.WriteString("files:\n")
		for _, f := range l.Files {
			b.WriteString("  - ")
			b.WriteString(f)
			b.WriteByte('\n')
		}
	}
	b.WriteString(execLogFooter)
	return b.String()
}

// AppendExecutionLog embeds the block into notes, replacing any existing
// block so re-submission never stacks duplicates.
func AppendExecutionLog(notes string, l ExecutionLog) string {
	notes = stripExecutionLog(notes)
	if notes == "" {
		return l.Format()
	}
	return strings.TrimRight(notes, "\n") + "\n\n" + l.Format()
}

// ParseExecutionLog extracts the block from notes. The second return is
// false when no block is present.
func ParseExecutionLog(notes string) (ExecutionLog, bool) {
	start := strings.Index(notes, execLogHeader)
	if start < 0 {
		return ExecutionLog{}, false
	}
	body := notes[start+len(execLogHeader):]
	if end := strings.Index(body, execLogFooter); end >= 0 {
		body = body[:end]
	}

	var l ExecutionLog
	inFiles := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if inFiles {
			if rest, ok := strings.CutPrefix(trimmed, "- "); ok {
				l.Files = append(l.Files, strings.TrimSpace(rest))
				continue
			}
			inFiles = false
		}
		if trimmed == "files:" {
			inFiles = true
			continue
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "branch":
			l.Branch = value
		case "agent":
			l.Agent = value
		case "commit":
			l.Commit = value
		case "pr":
			l.PRURL = value
		}
	}
	return l, true
}

// stripExecutionLog removes an embedded block, if any, from notes.
func stripExecutionLog(notes string) string {
	start := strings.Index(notes, execLogHeader)
	if start < 0 {
		return notes
	}
	rest := notes[start:]
	if end := strings.Index(rest, execLogFooter); end >= 0 {
		rest = rest[end+len(execLogFooter):]
	} else {
		rest = ""
	}
	return strings.TrimRight(notes[:start], "\n") + rest
}
