// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-council/internal/httputil"
	"github.com/pdiddy/research-council/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// withURL points a package-level endpoint at a test server for one test.
func withURL(t *testing.T, target *string, value string) {
	t.Helper()
	old := *target
	*target = value
	t.Cleanup(func() { *target = old })
}

func TestAnthropic_Generate(t *testing.T) {
	var got anthropicRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"content":[{"type":"text","text":"Hello "},{"type":"tool_use"},{"type":"text","text":"world"}]}`)
	}))
	defer ts.Close()
	withURL(t, &anthropicAPIURL, ts.URL)

	backend := &AnthropicBackend{Options: Options{Client: ts.Client(), MaxTokens: 512}}
	text, err := backend.Generate(context.Background(), "prompt", "claude-x", "sk-test")
	require.NoError(t, err)

	assert.Equal(t, "Hello world", text)
	assert.Equal(t, "claude-x", got.Model)
	assert.Equal(t, 512, got.MaxTokens)
	assert.Equal(t, []anthropicMessage{{Role: "user", Content: "prompt"}}, got.Messages)
}

func TestAnthropic_AuthError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid x-api-key"}`)
	}))
	defer ts.Close()
	withURL(t, &anthropicAPIURL, ts.URL)

	_, err := (&AnthropicBackend{Options: Options{Client: ts.Client()}}).Generate(context.Background(), "p", "m", "k")

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindAuth, pe.Kind)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, `anthropic API returned 401: {"error":"invalid x-api-key"}`, err.Error())
}

func TestOpenAI_ChatCompletions(t *testing.T) {
	var path string
	var got chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "Bearer sk-o", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"chat reply"}}]}`)
	}))
	defer ts.Close()
	withURL(t, &openAIChatURL, ts.URL+"/chat")
	withURL(t, &openAIResponsesURL, ts.URL+"/responses")

	text, err := (&OpenAIBackend{Options: Options{Client: ts.Client()}}).Generate(context.Background(), "p", "gpt-4o", "sk-o")
	require.NoError(t, err)

	assert.Equal(t, "chat reply", text)
	assert.Equal(t, "/chat", path)
	assert.Equal(t, systemPrompt, got.Messages[0].Content)
	assert.Equal(t, "p", got.Messages[1].Content)
}

func TestOpenAI_ResponsesAPI(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"output_text", `{"output_text":"direct"}`, "direct"},
		{"message items", `{"output":[{"type":"reasoning"},{"type":"message","content":[{"type":"output_text","text":"a"},{"type":"refusal"},{"type":"output_text","text":"b "}]}]}`, "a\nb"},
		{"nothing", `{"output":[]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()
			withURL(t, &openAIChatURL, ts.URL+"/chat")
			withURL(t, &openAIResponsesURL, ts.URL+"/responses")

			text, err := (&OpenAIBackend{Options: Options{Client: ts.Client()}}).Generate(context.Background(), "p", "GPT-5-nano", "k")
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
			assert.Equal(t, "/responses", path)
		})
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer ts.Close()
	withURL(t, &openAIChatURL, ts.URL)

	_, err := (&OpenAIBackend{Options: Options{Client: ts.Client()}}).Generate(context.Background(), "p", "gpt-4o", "k")
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindDecode, pe.Kind)
}

func TestOpenAI_RateLimitedAfterRetries(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	}))
	defer ts.Close()
	withURL(t, &openAIChatURL, ts.URL)

	_, err := (&OpenAIBackend{Options: Options{Client: ts.Client(), RateLimitRetries: 2}}).Generate(context.Background(), "p", "gpt-4o", "k")
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, 3, calls)
}

func TestGemini_Generate(t *testing.T) {
	var path, key string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.URL.Query().Get("key")
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"parts":[{"text":"p"}]`)
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"gem"}]}}]}`)
	}))
	defer ts.Close()
	withURL(t, &geminiAPIBase, ts.URL)

	text, err := (&GeminiBackend{Options: Options{Client: ts.Client()}}).Generate(context.Background(), "p", "Gemini 2.5 Flash", "g-key")
	require.NoError(t, err)

	assert.Equal(t, "gem", text)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", path)
	assert.Equal(t, "g-key", key)
}

func TestGemini_NoCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer ts.Close()
	withURL(t, &geminiAPIBase, ts.URL)

	text, err := (&GeminiBackend{Options: Options{Client: ts.Client()}}).Generate(context.Background(), "p", "gemini-pro", "k")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGemini_TransportErrorIsRedacted(t *testing.T) {
	withURL(t, &geminiAPIBase, "http://127.0.0.1:1")

	_, err := (&GeminiBackend{}).Generate(context.Background(), "p", "gemini-pro", "secret-key")
	require.Error(t, err)

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindTransport, pe.Kind)
	assert.NotContains(t, err.Error(), "secret-key")
	assert.NotContains(t, err.Error(), "127.0.0.1:1/models")
}

func TestNormalizeGeminiModel(t *testing.T) {
	tests := map[string]string{
		"gemini-1.5-flash":  "gemini-1.5-flash",
		"Gemini 2.5 Pro":    "gemini-2.5-pro",
		"gemini_flash":      "gemini_flash",
		"gemini flash":      "gemini-2.5-flash",
		"  gemini-exp-1206": "gemini-exp-1206",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeGeminiModel(in), in)
	}
}

func TestRedact(t *testing.T) {
	in := `Post "https://x.test/v1?key=abc123&alt=json": dial tcp; key=zzz other`
	out := Redact(in)
	assert.NotContains(t, out, "abc123")
	assert.NotContains(t, out, "zzz")
	assert.Contains(t, out, "URL_REDACTED")
	assert.True(t, strings.HasSuffix(out, "key=REDACTED other"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(OptionsFromConfig(types.ProviderConfig{Timeout: time.Second}))
	assert.Equal(t, []string{"anthropic", "gemini", "openai"}, r.Names())

	g, ok := r.Get(OpenAI)
	assert.True(t, ok)
	assert.IsType(t, &OpenAIBackend{}, g)

	_, ok = r.Get("mistral")
	assert.False(t, ok)
}

func TestResolveModel(t *testing.T) {
	m, ok := ResolveModel(Gemini, "")
	assert.True(t, ok)
	assert.Equal(t, "gemini-1.5-flash", m)

	m, ok = ResolveModel("mistral", "custom")
	assert.True(t, ok)
	assert.Equal(t, "custom", m)

	_, ok = ResolveModel("mistral", "")
	assert.False(t, ok)
}

func TestOptionsFromConfig_DefaultTimeout(t *testing.T) {
	opts := OptionsFromConfig(types.ProviderConfig{})
	assert.Equal(t, defaultTimeout, opts.Client.Timeout)
}
