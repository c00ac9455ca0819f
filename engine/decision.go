package engine

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/agentrelay/core"
)

// ParseDecision extracts a planning decision from raw agent output. The
// payload may be the whole output, a fenced code block, or an embedded JSON
// object. Parsing fails closed: when no candidate yields a well-formed
// decision the second return is false and the caller must fail the step.
func ParseDecision(output string) (core.PlanningDecision, bool) {
	for _, candidate := range decisionCandidates(output) {
		var d core.PlanningDecision
		if err := json.Unmarshal([]byte(candidate), &d); err != nil {
			continue
		}
		if decisionValid(d) {
			return d, true
		}
	}
	return core.PlanningDecision{}, false
}

func decisionValid(d core.PlanningDecision) bool {
	switch d.Action {
	case core.ActionFinish:
		return true
	case core.ActionDelegate:
		return d.TargetAgentID != ""
	default:
		return false
	}
}

// decisionCandidates yields possible JSON payloads in decreasing strictness:
// the trimmed output itself, each fenced code block, then the outermost brace
// span.
func decisionCandidates(output string) []string {
	var out []string
	trimmed := strings.TrimSpace(output)
	if trimmed != "" {
		out = append(out, trimmed)
	}
	out = append(out, fencedBlocks(trimmed)...)
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		out = append(out, trimmed[start:end+1])
	}
	return out
}

func fencedBlocks(s string) []string {
	var blocks []string
	for {
		open := strings.Index(s, "```")
		if open < 0 {
			return blocks
		}
		rest := s[open+3:]
		// Drop the info string ("json", "JSON", ...) on the opening fence.
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
		}
		closing := strings.Index(rest, "```")
		if closing < 0 {
			return blocks
		}
		if block := strings.TrimSpace(rest[:closing]); block != "" {
			blocks = append(blocks, block)
		}
		s = rest[closing+3:]
	}
}
