package process

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/provider"
)

// EnvClaudeCommand overrides the claude executable name.
const EnvClaudeCommand = "AGENTRELAY_CLAUDE_COMMAND"

// ClaudeAdapter drives the claude CLI in non-interactive stream-json mode.
// The CLI emits an NDJSON event stream; the terminal "result" event carries
// the final text and the backend session id.
type ClaudeAdapter struct{}

// Compile-time interface assertion.
var _ Adapter = ClaudeAdapter{}

// NewClaudeFactory returns a provider factory for the claude CLI.
func NewClaudeFactory(optFns ...func(o *Options)) provider.Factory {
	return func(cfg provider.Config) (provider.Provider, error) {
		return New(ClaudeAdapter{}, cfg, optFns...), nil
	}
}

// Descriptor implements Adapter.
func (ClaudeAdapter) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		ID:          "claude",
		DisplayName: "Claude Code",
		Kind:        core.ProviderKindProcess,
		Capabilities: core.Capabilities{
			Agent:       true,
			Model:       true,
			Passthrough: true,
			Reportees:   true,
			AgentCreate: true,
			AgentDelete: true,
		},
	}
}

// Command implements Adapter.
func (ClaudeAdapter) Command(cfg provider.Config) string {
	return cfg.Getenv(EnvClaudeCommand, "claude")
}

// BuildArgs implements Adapter. The CLI supports both resuming an existing
// conversation (--resume) and starting a new one under a caller-chosen id
// (--session-id), so a request's session id is honored either way.
func (ClaudeAdapter) BuildArgs(req core.InvocationRequest) []string {
	args := []string{"--print", "--output-format", "stream-json", "--verbose"}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.BackendSessionID != "" {
		if req.Resume {
			args = append(args, "--resume", req.BackendSessionID)
		} else {
			args = append(args, "--session-id", req.BackendSessionID)
		}
	}
	return args
}

// Normalize implements Adapter. Multiple result events may appear in one
// stream; the last one wins.
func (ClaudeAdapter) Normalize(stdout string) (string, string, error) {
	var text, sessionID string
	var sawResult bool
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		event := gjson.Parse(line)
		if sid := event.Get("session_id"); sid.Exists() {
			sessionID = sid.String()
		}
		if event.Get("type").String() == "result" {
			sawResult = true
			text = event.Get("result").String()
		}
	}
	if !sawResult {
		return "", "", fmt.Errorf("claude stream ended without a result event")
	}
	return text, sessionID, nil
}

// Remediation implements Adapter.
func (ClaudeAdapter) Remediation() string {
	return "install the Claude Code CLI and ensure 'claude' is on PATH (or set " + EnvClaudeCommand + ")"
}
