package engine

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
)

// buildPrompt assembles the planning turn sent to a backend: the agent's
// manifest body (its standing instructions), the delegation roster when the
// agent may delegate, the decision protocol, and finally the task itself.
// Resumed backend conversations already carry the preamble, so they receive
// only the task.
func buildPrompt(m agent.Manifest, mayDelegate bool, targets []core.AgentDescriptor, task string, resumed bool) string {
	if resumed {
		return task
	}

	var b strings.Builder
	if body := strings.TrimSpace(m.Body); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	if mayDelegate && len(targets) > 0 {
		b.WriteString("You can delegate sub-tasks to these agents:\n")
		for _, t := range targets {
			b.WriteString(fmt.Sprintf("- %s: %s\n", t.ID, describeAgent(t)))
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with a single JSON object and nothing else.\n")
	if mayDelegate && len(targets) > 0 {
		b.WriteString(`To delegate: {"action":"delegate_to_agent","target_agent_id":"<id>","message":"<sub-task>","expected_output":"<what you need back>"}` + "\n")
	}
	b.WriteString(`To finish: {"action":"finish","message":"<final result>"}` + "\n\n")

	b.WriteString("Task:\n")
	b.WriteString(task)
	return b.String()
}

func describeAgent(d core.AgentDescriptor) string {
	if d.Description != "" {
		return d.Description
	}
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.ID
}

// delegationTargets returns the agents the given agent may delegate to:
// discoverable, willing to receive, and not itself.
func delegationTargets(dir Directory, selfID string) []core.AgentDescriptor {
	all := dir.Discoverable()
	out := make([]core.AgentDescriptor, 0, len(all))
	for _, d := range all {
		if d.ID == selfID || !d.Delegation.CanReceive {
			continue
		}
		out = append(out, d)
	}
	return out
}
