package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/provider"
)

func newTestProvider(baseURL string, optFns ...func(o *Options)) *Provider {
	cfg := provider.Config{}
	fns := append([]func(o *Options){func(o *Options) {
		o.BaseURL = baseURL
		o.APIKey = "test-key"
		o.Model = "test-model"
		o.Timeout = 5 * time.Second
	}}, optFns...)
	return New(cfg, fns...)
}

func TestInvokeResponsesStyle(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		fmt.Fprint(w, `{"id":"resp_1","output_text":"hello from responses"}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	res, err := p.Invoke(context.Background(), core.InvocationRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "/responses", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotBody["model"])
	assert.Equal(t, "hi", gotBody["input"])
	assert.Equal(t, "hello from responses", res.Stdout)
	assert.Equal(t, "resp_1", res.BackendSessionID)
}

func TestInvokeResponsesOutputArrayForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"resp_2","output":[
			{"type":"reasoning","content":[]},
			{"type":"message","content":[
				{"type":"output_text","text":"part one. "},
				{"type":"output_text","text":"part two."}
			]}
		]}`)
	}))
	defer srv.Close()

	res, err := newTestProvider(srv.URL).Invoke(context.Background(), core.InvocationRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "part one. part two.", res.Stdout)
	assert.Equal(t, "resp_2", res.BackendSessionID)
}

func TestInvokeResumeThreadsPreviousResponseID(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		fmt.Fprint(w, `{"id":"resp_3","output_text":"continued"}`)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Invoke(context.Background(), core.InvocationRequest{
		Message:          "continue",
		BackendSessionID: "resp_2",
		Resume:           true,
	})
	require.NoError(t, err)
	assert.Equal(t, "resp_2", gotBody["previous_response_id"])
}

func TestFallbackOn404RetriesChatExactlyOnce(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/responses" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello from chat"}}]}`)
	}))
	defer srv.Close()

	res, err := newTestProvider(srv.URL).Invoke(context.Background(), core.InvocationRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/responses", "/chat/completions"}, paths)
	assert.Equal(t, "hello from chat", res.Stdout)
	assert.Empty(t, res.BackendSessionID)
}

func TestFallbackNotRetriedTwice(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Invoke(context.Background(), core.InvocationRequest{Message: "hi"})

	var runtimeErr *core.ProviderRuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Equal(t, http.StatusNotFound, runtimeErr.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestFallbackSuppressedWhenStylePinned(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, func(o *Options) { o.Style = StyleResponses })
	_, err := p.Invoke(context.Background(), core.InvocationRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFallbackSuppressedWhenEndpointPinned(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, func(o *Options) { o.EndpointPath = "/v2/custom" })
	_, err := p.Invoke(context.Background(), core.InvocationRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFallbackOnTimeout(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/responses" {
			time.Sleep(300 * time.Millisecond)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"chat rescued it"}}]}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, func(o *Options) { o.Timeout = 50 * time.Millisecond })
	res, err := p.Invoke(context.Background(), core.InvocationRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "chat rescued it", res.Stdout)
	mu.Lock()
	assert.Equal(t, []string{"/responses", "/chat/completions"}, paths)
	mu.Unlock()
}

func TestMissingAPIKeyFailsBeforeAnyCall(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	p := New(provider.Config{}, func(o *Options) { o.BaseURL = srv.URL })
	_, err := p.Invoke(context.Background(), core.InvocationRequest{Message: "hi"})

	var authErr *core.ProviderAuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, calls)
}

func TestUnauthorizedMapsToAuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Invoke(context.Background(), core.InvocationRequest{Message: "hi"})

	var authErr *core.ProviderAuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "openai-compat", authErr.ProviderID)
}

func TestFullEndpointOverridePrecedence(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"id":"r","output_text":"ok"}`)
	}))
	defer srv.Close()

	p := newTestProvider("http://unused.invalid", func(o *Options) {
		o.Endpoint = srv.URL + "/proxy/v1/generate"
		o.EndpointPath = "/ignored"
	})
	_, err := p.Invoke(context.Background(), core.InvocationRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "/proxy/v1/generate", gotPath)
}

func TestEnvironmentSnapshotConfiguration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer env-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	cfg := provider.Config{Env: map[string]string{
		EnvBaseURL: srv.URL,
		EnvAPIKey:  "env-key",
		EnvModel:   "env-model",
		EnvStyle:   string(StyleChat),
	}}
	p := New(cfg)
	res, err := p.Invoke(context.Background(), core.InvocationRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Stdout)
}

func TestStreamsToSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"r","output_text":"streamed"}`)
	}))
	defer srv.Close()

	var sink strings.Builder
	_, err := newTestProvider(srv.URL).Invoke(context.Background(), core.InvocationRequest{Message: "hi", Stdout: &sink})
	require.NoError(t, err)
	assert.Equal(t, "streamed", sink.String())
}
