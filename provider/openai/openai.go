package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/provider"
)

// EnvAPIKey is the environment key the factory reads the credential from.
const EnvAPIKey = "OPENAI_API_KEY"

// Options configure the OpenAI provider.
type Options struct {
	// Model is the default model when the request carries none.
	Model string
	// MaxCompletionTokens caps the response length.
	MaxCompletionTokens int64
	// BaseURL overrides the API endpoint, e.g. for proxies.
	BaseURL string
}

// Provider wraps the OpenAI Chat Completions API behind the uniform provider
// contract.
type Provider struct {
	client openai.Client
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
		Model:               openai.ChatModelGPT4oMini,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Provider{client: openai.NewClient(clientOpts...), apiKey: apiKey, opts: opts}
}

// Descriptor implements provider.Provider.
func (p *Provider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		ID:          "openai",
		DisplayName: "OpenAI",
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

	model := req.Model
	if model == "" {
		model = p.opts.Model
	}
	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Message),
		},
		MaxCompletionTokens: openai.Int(p.opts.MaxCompletionTokens),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.InvocationResult{}, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return core.InvocationResult{}, &core.ProviderRuntimeError{
			ProviderID: p.Descriptor().ID,
			Err:        fmt.Errorf("no choices returned"),
		}
	}

	text := resp.Choices[0].Message.Content
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
	var apiErr *openai.Error
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
	return &core.ProviderRuntimeError{ProviderID: p.Descriptor().ID, Err: fmt.Errorf("openai api error: %w", err)}
}
