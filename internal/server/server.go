// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes runs, ideas, gates and the resubmission controller
// over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pdiddy/research-council/internal/artifacts"
	"github.com/pdiddy/research-council/internal/pipeline"
	"github.com/pdiddy/research-council/internal/provider"
	"github.com/pdiddy/research-council/internal/secrets"
	"github.com/pdiddy/research-council/internal/store"
)

// DefaultBasePath prefixes every API route.
const DefaultBasePath = "/api"

// Config wires the API handler.
type Config struct {
	Service   *pipeline.Service
	Store     *store.Store
	Keyring   *secrets.Keyring
	Providers *provider.Registry
	BasePath  string
	Version   string
	Logger    *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"idea 4: not found"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError is the error envelope of every failed request.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns the HTTP handler for the API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Service == nil || cfg.Store == nil || cfg.Keyring == nil || cfg.Providers == nil {
		return nil, errors.New("server: service, store, keyring and providers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, errDetails(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg, errDetails(errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(cfg.Logger))

	hcfg := huma.DefaultConfig("Research Council API", cfg.Version)
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerProviders(group, cfg)
	registerSession(group, cfg)
	registerCredentials(group, cfg)
	registerLiterature(group, cfg)
	registerRuns(group, cfg)
	registerIdeas(group, cfg)
	registerCouncil(group, cfg)
	registerVersions(group, cfg)

	return router, nil
}

func errDetails(errs []error) map[string]any {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return map[string]any{"errors": msgs}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body:   apiErrorBody{Code: code, Message: message, Details: details},
	}
}

// handleError maps domain errors onto HTTP statuses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var perr *provider.Error
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, artifacts.ErrVersionNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, secrets.ErrLocked):
		return newAPIError(http.StatusUnauthorized, "session_locked", msg, nil)
	case errors.Is(err, secrets.ErrWrongPassphrase):
		return newAPIError(http.StatusUnauthorized, "wrong_passphrase", msg, nil)
	case errors.Is(err, store.ErrRunTransition):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case errors.Is(err, pipeline.ErrNoDossierParts),
		errors.Is(err, pipeline.ErrInvalidRequest),
		errors.Is(err, pipeline.ErrUnknownProvider),
		errors.Is(err, pipeline.ErrModelRequired),
		errors.Is(err, pipeline.ErrMissingCredentials),
		errors.Is(err, secrets.ErrEmptyPassphrase),
		errors.Is(err, store.ErrInvalidGate):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case provider.IsRateLimited(err):
		return newAPIError(http.StatusTooManyRequests, "rate_limited", msg, nil)
	case errors.As(err, &perr):
		return newAPIError(http.StatusBadGateway, "provider_error", msg, map[string]any{"provider": perr.Provider, "kind": perr.Kind})
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requestLogger tags each request with an id and logs it on completion.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

// session returns the unlocked session, or nil when the keyring is locked.
// Operations that need one report secrets.ErrLocked themselves.
func session(k *secrets.Keyring) *secrets.Session {
	s, err := k.Session()
	if err != nil {
		return nil
	}
	return s
}
