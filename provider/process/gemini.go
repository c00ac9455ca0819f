package process

import (
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/provider"
)

// EnvGeminiCommand overrides the gemini executable name.
const EnvGeminiCommand = "AGENTRELAY_GEMINI_COMMAND"

// GeminiAdapter drives the gemini CLI. Output is plain text and the protocol
// has no conversation continuity, so every turn starts fresh.
type GeminiAdapter struct{}

// Compile-time interface assertion.
var _ Adapter = GeminiAdapter{}

// NewGeminiFactory returns a provider factory for the gemini CLI.
func NewGeminiFactory(optFns ...func(o *Options)) provider.Factory {
	return func(cfg provider.Config) (provider.Provider, error) {
		return New(GeminiAdapter{}, cfg, optFns...), nil
	}
}

// Descriptor implements Adapter.
func (GeminiAdapter) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		ID:          "gemini",
		DisplayName: "Gemini CLI",
		Kind:        core.ProviderKindProcess,
		Capabilities: core.Capabilities{
			Agent: true,
			Model: true,
		},
	}
}

// Command implements Adapter.
func (GeminiAdapter) Command(cfg provider.Config) string {
	return cfg.Getenv(EnvGeminiCommand, "gemini")
}

// BuildArgs implements Adapter. The message lands as the value of -p because
// the shared provider appends it as the final argument.
func (GeminiAdapter) BuildArgs(req core.InvocationRequest) []string {
	var args []string
	if req.Model != "" {
		args = append(args, "-m", req.Model)
	}
	return append(args, "-p")
}

// Normalize implements Adapter.
func (GeminiAdapter) Normalize(stdout string) (string, string, error) {
	return strings.TrimSpace(stdout), "", nil
}

// Remediation implements Adapter.
func (GeminiAdapter) Remediation() string {
	return "install the Gemini CLI and ensure 'gemini' is on PATH (or set " + EnvGeminiCommand + ")"
}
