package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/provider"
)

// Environment keys consumed by New when the corresponding option is unset.
const (
	EnvBaseURL      = "AGENTRELAY_HTTP_BASE_URL"
	EnvAPIKey       = "AGENTRELAY_HTTP_API_KEY"
	EnvModel        = "AGENTRELAY_HTTP_MODEL"
	EnvEndpoint     = "AGENTRELAY_HTTP_ENDPOINT"
	EnvEndpointPath = "AGENTRELAY_HTTP_ENDPOINT_PATH"
	EnvStyle        = "AGENTRELAY_HTTP_STYLE"
)

// Style selects the request/response wire shape.
type Style string

const (
	// StyleResponses is the single-output-field shape (POST /responses).
	StyleResponses Style = "responses"
	// StyleChat is the chat completion shape (POST /chat/completions).
	StyleChat Style = "chat"
)

const defaultAttemptTimeout = 2 * time.Minute

// Options holds overrides passed to New(). Unset fields fall back to the
// environment snapshot in provider.Config.
type Options struct {
	// HTTPClient issues the requests. Defaults to a plain http.Client; the
	// per-attempt timeout comes from Timeout, not the client.
	HTTPClient *http.Client
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string
	// APIKey is the bearer token. Required; its absence fails before any call.
	APIKey string
	// Model is the default model when the request carries none.
	Model string
	// Endpoint pins the full request URL. Highest precedence; disables the
	// style fallback.
	Endpoint string
	// EndpointPath pins the path joined onto BaseURL. Disables the style
	// fallback.
	EndpointPath string
	// Style pins the request style. Empty means responses-first with chat
	// fallback.
	Style Style
	// Timeout is the per-attempt wall-clock budget.
	Timeout time.Duration
	// Logger receives adapter diagnostics.
	Logger logging.Logger
}

// Provider invokes an OpenAI-compatible HTTP completion API.
type Provider struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	model        string
	endpoint     string
	endpointPath string
	style        Style
	timeout      time.Duration
	logger       logging.Logger
}

// Compile-time interface assertion.
var _ provider.Provider = (*Provider)(nil)

// NewFactory returns a provider factory for the generic HTTP adapter.
func NewFactory(optFns ...func(o *Options)) provider.Factory {
	return func(cfg provider.Config) (provider.Provider, error) {
		return New(cfg, optFns...), nil
	}
}

// New constructs the adapter, layering explicit options over the environment
// snapshot.
func New(cfg provider.Config, optFns ...func(o *Options)) *Provider {
	opts := Options{Timeout: defaultAttemptTimeout, Logger: cfg.Logger}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = cfg.Getenv(EnvBaseURL, "https://api.openai.com/v1")
	}
	if opts.APIKey == "" {
		opts.APIKey = cfg.Getenv(EnvAPIKey, "")
	}
	if opts.Model == "" {
		opts.Model = cfg.Getenv(EnvModel, "")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = cfg.Getenv(EnvEndpoint, "")
	}
	if opts.EndpointPath == "" {
		opts.EndpointPath = cfg.Getenv(EnvEndpointPath, "")
	}
	if opts.Style == "" {
		opts.Style = Style(cfg.Getenv(EnvStyle, ""))
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Provider{
		client:       opts.HTTPClient,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		model:        opts.Model,
		endpoint:     opts.Endpoint,
		endpointPath: opts.EndpointPath,
		style:        opts.Style,
		timeout:      opts.Timeout,
		logger:       opts.Logger,
	}
}

// Descriptor implements provider.Provider.
func (p *Provider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		ID:          "openai-compat",
		DisplayName: "OpenAI-compatible API",
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
	if err := p.checkAuth(); err != nil {
		return core.InvocationResult{}, err
	}

	style := p.style
	if style == "" {
		style = StyleResponses
	}

	res, err := p.attempt(ctx, style, req)
	if err != nil && p.fallbackEligible(style, err) && ctx.Err() == nil {
		p.logger.Debug("responses style failed, retrying once with chat style: %v", err)
		return p.attempt(ctx, StyleChat, req)
	}
	return res, err
}

// InvokeAuth implements provider.Provider. Authentication here is a
// credential check: a cheap call proves the configured key works.
func (p *Provider) InvokeAuth(ctx context.Context, req core.InvocationRequest) (core.InvocationResult, error) {
	if err := p.checkAuth(); err != nil {
		return core.InvocationResult{}, err
	}
	if req.Message == "" {
		req.Message = "ping"
	}
	return p.Invoke(ctx, req)
}

func (p *Provider) checkAuth() error {
	if p.apiKey == "" {
		return &core.ProviderAuthenticationError{
			ProviderID: p.Descriptor().ID,
			Reason:     "no API key configured (set " + EnvAPIKey + ")",
		}
	}
	return nil
}

// fallbackEligible implements the single-retry rule: only from the default
// responses style, only on 404 or timeout, never when the caller pinned style
// or endpoint.
func (p *Provider) fallbackEligible(attempted Style, err error) bool {
	if attempted != StyleResponses {
		return false
	}
	if p.style != "" || p.endpoint != "" || p.endpointPath != "" {
		return false
	}
	var statusErr *core.ProviderRuntimeError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return true
	}
	return isTimeout(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (p *Provider) attempt(ctx context.Context, style Style, req core.InvocationRequest) (core.InvocationResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	body, err := json.Marshal(p.buildBody(style, req))
	if err != nil {
		return core.InvocationResult{}, fmt.Errorf("encode request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointFor(style), bytes.NewReader(body))
	if err != nil {
		return core.InvocationResult{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return core.InvocationResult{}, fmt.Errorf("%s: %w", p.Descriptor().ID, core.ErrCancelled)
		}
		if isTimeout(err) {
			return core.InvocationResult{}, fmt.Errorf("%s request timed out: %w", p.Descriptor().ID, context.DeadlineExceeded)
		}
		return core.InvocationResult{}, &core.ProviderRuntimeError{ProviderID: p.Descriptor().ID, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.InvocationResult{}, &core.ProviderRuntimeError{ProviderID: p.Descriptor().ID, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.InvocationResult{}, &core.ProviderAuthenticationError{
			ProviderID: p.Descriptor().ID,
			Reason:     fmt.Sprintf("API rejected credentials (HTTP %d)", resp.StatusCode),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return core.InvocationResult{}, &core.ProviderRuntimeError{
			ProviderID: p.Descriptor().ID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, tail(string(payload), 300)),
		}
	}

	text, sessionID, err := parseResponse(style, payload)
	if err != nil {
		return core.InvocationResult{}, &core.ProviderRuntimeError{ProviderID: p.Descriptor().ID, Err: err}
	}

	if req.Stdout != nil {
		fmt.Fprint(req.Stdout, text)
	}
	return core.InvocationResult{Stdout: text, BackendSessionID: sessionID}, nil
}

// endpointFor resolves the request URL: full endpoint override > path
// override > style-derived default.
func (p *Provider) endpointFor(style Style) string {
	if p.endpoint != "" {
		return p.endpoint
	}
	path := p.endpointPath
	if path == "" {
		if style == StyleChat {
			path = "/chat/completions"
		} else {
			path = "/responses"
		}
	}
	return p.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (p *Provider) buildBody(style Style, req core.InvocationRequest) map[string]any {
	model := req.Model
	if model == "" {
		model = p.model
	}
	if style == StyleChat {
		return map[string]any{
			"model": model,
			"messages": []map[string]string{
				{"role": "user", "content": req.Message},
			},
		}
	}
	body := map[string]any{
		"model": model,
		"input": req.Message,
	}
	if req.Resume && req.BackendSessionID != "" {
		body["previous_response_id"] = req.BackendSessionID
	}
	return body
}

// parseResponse extracts the normalized text. The responses shape surfaces
// the response id as the continuity handle (chained via
// previous_response_id); chat completions are stateless.
func parseResponse(style Style, payload []byte) (text, sessionID string, err error) {
	doc := gjson.ParseBytes(payload)
	if style == StyleChat {
		content := doc.Get("choices.0.message.content")
		if !content.Exists() {
			return "", "", fmt.Errorf("chat response missing choices[0].message.content")
		}
		return content.String(), "", nil
	}

	sessionID = doc.Get("id").String()
	if out := doc.Get("output_text"); out.Exists() {
		return out.String(), sessionID, nil
	}
	// output[] item array form: concatenate the output_text parts of
	// message items.
	var b strings.Builder
	for _, item := range doc.Get("output").Array() {
		if item.Get("type").String() != "message" {
			continue
		}
		for _, part := range item.Get("content").Array() {
			if part.Get("type").String() == "output_text" {
				b.WriteString(part.Get("text").String())
			}
		}
	}
	if b.Len() == 0 {
		return "", "", fmt.Errorf("responses payload carried no output text")
	}
	return b.String(), sessionID, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}
