package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/provider"
)

// EnvAPIKey is the environment key the factory reads the credential from.
const EnvAPIKey = "ANTHROPIC_API_KEY"

// Options configure the Anthropic provider.
type Options struct {
	// Model is the default model when the request carries none.
	Model anthropic.Model
	// MaxTokens caps the response length.
	MaxTokens int64
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Provider wraps the Anthropic Messages API behind the uniform provider
// contract.
type Provider struct {
	client anthropic.Client
	apiKey string
	opts   Options
}

// Compile-time interface assertion.
var _ provider.Provider = (*Provider)(nil)

// NewFactory returns a provider factory reading the API key from the
// environment snapshot.
func NewFactory(optFns ...func(o *Options)) provider.Factory {
	return func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg.Getenv(EnvAPIKey, ""), optFns...), nil
	}
}

// New constructs the provider with an explicit API key.
func New(apiKey string, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Provider{client: anthropic.NewClient(clientOpts...), apiKey: apiKey, opts: opts}
}

// Descriptor implements provider.Provider.
func (p *Provider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		ID:          "anthropic",
		DisplayName: "Anthropic",
		Kind:        core.ProviderKindHTTP,
		Capabilities: core.Capabilities{
			Agent: true,
			Model: true,
			Auth:  true,
		},
	}
}

// Invoke implements provider.Provider.
func (p *Provider) Invoke(ctx context.Context, req core.InvocationRequest) (core.InvocationResult, error) {
	if p.apiKey == "" {
		return core.InvocationResult{}, &core.ProviderAuthenticationError{
			ProviderID: p.Descriptor().ID,
			Reason:     "no API key configured (set " + EnvAPIKey + ")",
		}
	}

	model := p.opts.Model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: p.opts.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)),
		},
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return core.InvocationResult{}, p.classify(err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	text := b.String()
	if req.Stdout != nil {
		fmt.Fprint(req.Stdout, text)
	}
	return core.InvocationResult{Stdout: text}, nil
}

// InvokeAuth implements provider.Provider as a credential check.
func (p *Provider) InvokeAuth(ctx context.Context, req core.InvocationRequest) (core.InvocationResult, error) {
	if req.Message == "" {
		req.Message = "ping"
	}
	return p.Invoke(ctx, req)
}

func (p *Provider) classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", p.Descriptor().ID, core.ErrCancelled)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &core.ProviderAuthenticationError{
				ProviderID: p.Descriptor().ID,
				Reason:     fmt.Sprintf("API rejected credentials (HTTP %d)", apiErr.StatusCode),
			}
		default:
			return &core.ProviderRuntimeError{
				ProviderID: p.Descriptor().ID,
				StatusCode: apiErr.StatusCode,
				Err:        err,
			}
		}
	}
	return &core.ProviderRuntimeError{ProviderID: p.Descriptor().ID, Err: fmt.Errorf("anthropic api error: %w", err)}
}
