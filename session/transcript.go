package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentrelay/core"
)

const entryHeaderPrefix = "## "

// formatEntry renders one transcript entry in the append-only markdown
// format: a "## role | timestamp" header followed by the text.
func formatEntry(e core.TranscriptEntry) string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return fmt.Sprintf("%s%s | %s\n\n%s\n\n", entryHeaderPrefix, e.Role, ts.UTC().Format(time.RFC3339), strings.TrimRight(e.Text, "\n"))
}

// parseTranscript reads entries back from transcript markdown. Unrecognized
// leading content is ignored so hand-edited transcripts degrade gracefully.
func parseTranscript(raw string) []core.TranscriptEntry {
	var entries []core.TranscriptEntry
	var current *core.TranscriptEntry
	var text strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(text.String())
		entries = append(entries, *current)
		current = nil
		text.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, entryHeaderPrefix) {
			flush()
			role, ts := parseEntryHeader(strings.TrimPrefix(line, entryHeaderPrefix))
			current = &core.TranscriptEntry{Role: role, Timestamp: ts}
			continue
		}
		if current != nil {
			text.WriteString(line)
			text.WriteString("\n")
		}
	}
	flush()
	return entries
}

func parseEntryHeader(header string) (role string, ts time.Time) {
	role = strings.TrimSpace(header)
	if idx := strings.LastIndex(header, " | "); idx >= 0 {
		role = strings.TrimSpace(header[:idx])
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(header[idx+3:])); err == nil {
			ts = parsed
		}
	}
	return role, ts
}
