package core

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// NewID generates a new unique identifier for runs, sessions and steps.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

var slugCleanRE = regexp.MustCompile(`[^a-z0-9-]+`)

// NormalizeAgentID lowercases an agent reference and reduces it to a
// slug containing only [a-z0-9-]. Whitespace and underscores become single
// hyphens; anything else is dropped. Agent ids are compared in this form
// everywhere in the runtime.
func NormalizeAgentID(ref string) string {
	s := strings.ToLower(strings.TrimSpace(ref))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.Join(strings.Fields(s), "-")
	s = slugCleanRE.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}
