package process

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/provider"
)

// EnvCodexCommand overrides the codex executable name.
const EnvCodexCommand = "AGENTRELAY_CODEX_COMMAND"

// CodexAdapter drives the codex CLI in non-interactive JSONL mode. The final
// agent message arrives as an "item.completed" event; the conversation handle
// comes from the session/thread lifecycle events.
type CodexAdapter struct{}

// Compile-time interface assertion.
var _ Adapter = CodexAdapter{}

// NewCodexFactory returns a provider factory for the codex CLI.
func NewCodexFactory(optFns ...func(o *Options)) provider.Factory {
	return func(cfg provider.Config) (provider.Provider, error) {
		return New(CodexAdapter{}, cfg, optFns...), nil
	}
}

// Descriptor implements Adapter.
func (CodexAdapter) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		ID:          "codex",
		DisplayName: "Codex CLI",
		Kind:        core.ProviderKindProcess,
		Capabilities: core.Capabilities{
			Agent:       true,
			Model:       true,
			Passthrough: true,
		},
	}
}

// Command implements Adapter.
func (CodexAdapter) Command(cfg provider.Config) string {
	return cfg.Getenv(EnvCodexCommand, "codex")
}

// BuildArgs implements Adapter. Codex only resumes sessions it allocated
// itself, so a session id is passed only on resume.
func (CodexAdapter) BuildArgs(req core.InvocationRequest) []string {
	args := []string{"exec"}
	if req.Resume && req.BackendSessionID != "" {
		args = append(args, "resume", req.BackendSessionID)
	}
	args = append(args, "--json")
	if req.Model != "" {
		args = append(args, "-m", req.Model)
	}
	return args
}

// Normalize implements Adapter.
func (CodexAdapter) Normalize(stdout string) (string, string, error) {
	var text, sessionID string
	var sawMessage bool
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		event := gjson.Parse(line)
		switch event.Get("type").String() {
		case "session.created":
			sessionID = event.Get("session_id").String()
		case "thread.started":
			sessionID = event.Get("thread_id").String()
		case "item.completed":
			if event.Get("item.type").String() == "agent_message" {
				sawMessage = true
				text = event.Get("item.text").String()
			}
		}
	}
	if !sawMessage {
		return "", "", fmt.Errorf("codex stream ended without a completed agent message")
	}
	return text, sessionID, nil
}

// Remediation implements Adapter.
func (CodexAdapter) Remediation() string {
	return "install the Codex CLI and ensure 'codex' is on PATH (or set " + EnvCodexCommand + ")"
}
