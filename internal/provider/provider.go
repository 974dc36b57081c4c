// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider wraps the text-generation backends behind one capability:
// generate(prompt, model, apiKey) -> text. Every failure is an *Error that
// names its kind so callers can tell rate limiting from other faults. Error
// messages never carry API keys or request URLs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/research-council/internal/httputil"
	"github.com/pdiddy/research-council/pkg/types"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, model, apiKey string) (string, error)
}

// Provider names.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Gemini    = "gemini"
)

// DefaultModels maps each provider to the model used when none is given.
var DefaultModels = map[string]string{
	OpenAI:    "gpt-5-nano",
	Anthropic: "claude-3-5-sonnet-20240620",
	Gemini:    "gemini-1.5-flash",
}

// systemPrompt frames every OpenAI request.
const systemPrompt = "You are a careful research assistant."

const (
	defaultTimeout   = 180 * time.Second
	defaultMaxTokens = 4096
	temperature      = 0.7
	maxErrorBody     = 4 << 10
)

// Kind classifies a provider failure.
type Kind string

const (
	KindTransport Kind = "transport"
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
)

// Error is returned by every backend on failure.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API %s error: %s", e.Provider, e.Kind, e.Message)
}

// IsRateLimited reports whether err is a provider rate-limit failure.
func IsRateLimited(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindRateLimit
}

var (
	keyParamRe = regexp.MustCompile(`key=[^&\s"']+`)
	urlRe      = regexp.MustCompile(`https?://[^\s"']+`)
)

// Redact removes API keys and URLs from text destined for logs or users.
func Redact(text string) string {
	out := keyParamRe.ReplaceAllString(text, "key=REDACTED")
	return urlRe.ReplaceAllString(out, "URL_REDACTED")
}

func transportError(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindTransport, Message: Redact(err.Error())}
}

func decodeError(provider string, format string, args ...any) *Error {
	return &Error{Provider: provider, Kind: KindDecode, Message: Redact(fmt.Sprintf(format, args...))}
}

// statusError reads a bounded slice of a non-2xx body into an *Error.
func statusError(provider string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	kind := KindStatus
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuth
	case http.StatusTooManyRequests:
		kind = KindRateLimit
	}
	return &Error{
		Provider:   provider,
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Message:    Redact(strings.TrimSpace(string(body))),
	}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// Options configure the HTTP backends.
type Options struct {
	Client           *http.Client
	RateLimitRetries int
	MaxTokens        int
}

// OptionsFromConfig builds Options with an HTTP client honouring the
// configured timeout.
func OptionsFromConfig(cfg types.ProviderConfig) Options {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Options{
		Client:           &http.Client{Timeout: timeout},
		RateLimitRetries: cfg.RateLimitRetries,
		MaxTokens:        cfg.MaxTokens,
	}
}

func (o Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return http.DefaultClient
}

func (o Options) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return httputil.DoWithRetry(ctx, o.client(), req, o.RateLimitRetries)
}

// Registry resolves provider names to generators.
type Registry struct {
	backends map[string]Generator
}

// NewRegistry returns a registry holding the three HTTP backends.
func NewRegistry(opts Options) *Registry {
	return &Registry{backends: map[string]Generator{
		OpenAI:    &OpenAIBackend{Options: opts},
		Anthropic: &AnthropicBackend{Options: opts},
		Gemini:    &GeminiBackend{Options: opts},
	}}
}

// NewStaticRegistry returns a registry over the given generators.
func NewStaticRegistry(backends map[string]Generator) *Registry {
	return &Registry{backends: backends}
}

// Get returns the generator for name.
func (r *Registry) Get(name string) (Generator, bool) {
	g, ok := r.backends[name]
	return g, ok
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveModel returns model, or the provider default when model is empty.
func ResolveModel(provider, model string) (string, bool) {
	if model != "" {
		return model, true
	}
	m, ok := DefaultModels[provider]
	return m, ok
}
