// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pdiddy/research-council/internal/artifacts"
	"github.com/pdiddy/research-council/internal/pipeline"
	"github.com/pdiddy/research-council/internal/provider"
	"github.com/pdiddy/research-council/internal/store"
	"github.com/pdiddy/research-council/pkg/types"
)

// output wraps a response body.
type output[T any] struct {
	Body T
}

func reply[T any](v T) *output[T] {
	return &output[T]{Body: v}
}

type ideaPath struct {
	IdeaID int64 `path:"idea_id"`
}

func registerProviders(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/providers",
		Summary:     "List generation providers",
	}, func(ctx context.Context, _ *struct{}) (*output[[]ProviderInfo], error) {
		names := cfg.Providers.Names()
		out := make([]ProviderInfo, len(names))
		for i, name := range names {
			out[i] = ProviderInfo{Name: name, DefaultModel: provider.DefaultModels[name]}
		}
		return reply(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "test-provider",
		Method:      http.MethodPost,
		Path:        "/providers/{provider}/test",
		Summary:     "Send a connectivity prompt to a provider",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Provider string               `path:"provider"`
		Body     *ProviderTestRequest `json:"body"`
	}) (*output[pipeline.ProviderCheck], error) {
		var model string
		if input.Body != nil {
			model = input.Body.Model
		}
		check, err := cfg.Service.TestProvider(ctx, input.Provider, model, session(cfg.Keyring))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(check), nil
	})
}

func sessionResponse(cfg Config) SessionResponse {
	s := session(cfg.Keyring)
	if s == nil {
		return SessionResponse{}
	}
	at := s.UnlockedAt()
	return SessionResponse{Unlocked: true, UnlockedAt: &at}
}

func registerSession(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/session",
		Summary:     "Report whether the credential session is unlocked",
	}, func(ctx context.Context, _ *struct{}) (*output[SessionResponse], error) {
		return reply(sessionResponse(cfg)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unlock-session",
		Method:      http.MethodPost,
		Path:        "/session/unlock",
		Summary:     "Unlock stored credentials with a passphrase",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body UnlockRequest `json:"body"`
	}) (*output[SessionResponse], error) {
		if _, err := cfg.Keyring.Unlock(input.Body.Passphrase); err != nil {
			return nil, handleError(err)
		}
		return reply(sessionResponse(cfg)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lock-session",
		Method:      http.MethodPost,
		Path:        "/session/lock",
		Summary:     "Forget the passphrase",
	}, func(ctx context.Context, _ *struct{}) (*output[SessionResponse], error) {
		cfg.Keyring.Lock()
		return reply(SessionResponse{}), nil
	})
}

func registerCredentials(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-credential",
		Method:        http.MethodPost,
		Path:          "/credentials",
		Summary:       "Store a provider API key sealed under the session passphrase",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CredentialRequest `json:"body"`
	}) (*output[types.Credential], error) {
		c, err := cfg.Service.AddCredential(ctx, input.Body.Provider, input.Body.Name, input.Body.APIKey, session(cfg.Keyring))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-credentials",
		Method:      http.MethodGet,
		Path:        "/credentials",
		Summary:     "List stored credentials without their secrets",
	}, func(ctx context.Context, _ *struct{}) (*output[[]types.Credential], error) {
		creds, err := cfg.Store.ListCredentials(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if creds == nil {
			creds = []types.Credential{}
		}
		return reply(creds), nil
	})
}

func registerLiterature(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "put-literature-assessment",
		Method:      http.MethodPut,
		Path:        "/literature/{query_id}/assessment",
		Summary:     "Set the assessment text of a literature query",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		QueryID int64             `path:"query_id"`
		Body    AssessmentRequest `json:"body"`
	}) (*output[types.LiteratureAssessment], error) {
		a, err := cfg.Store.PutLiteratureAssessment(ctx, input.QueryID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-literature-assessment",
		Method:      http.MethodGet,
		Path:        "/literature/{query_id}/assessment",
		Summary:     "Get the assessment text of a literature query",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		QueryID int64 `path:"query_id"`
	}) (*output[types.LiteratureAssessment], error) {
		a, err := cfg.Store.GetLiteratureAssessment(ctx, input.QueryID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})
}

func registerRuns(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-run",
		Method:        http.MethodPost,
		Path:          "/runs",
		Summary:       "Queue a generation run",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body pipeline.RunRequest `json:"body"`
	}) (*output[types.Run], error) {
		run, err := cfg.Service.StartRun(ctx, input.Body, session(cfg.Keyring))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(run), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List the most recent runs",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"5" minimum:"1" maximum:"100"`
	}) (*output[[]types.Run], error) {
		runs, err := cfg.Store.ListRuns(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if runs == nil {
			runs = []types.Run{}
		}
		return reply(runs), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{run_id}",
		Summary:     "Get a run with its ideas",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RunID int64 `path:"run_id"`
	}) (*output[RunDetail], error) {
		run, err := cfg.Store.GetRun(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		ideas, err := cfg.Store.ListIdeas(ctx, run.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if ideas == nil {
			ideas = []types.Idea{}
		}
		return reply(RunDetail{Run: run, Ideas: ideas}), nil
	})
}

func registerIdeas(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-ideas",
		Method:      http.MethodGet,
		Path:        "/ideas",
		Summary:     "List ideas, newest first",
	}, func(ctx context.Context, input *struct {
		RunID int64 `query:"run_id"`
	}) (*output[[]types.Idea], error) {
		ideas, err := cfg.Store.ListIdeas(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		if ideas == nil {
			ideas = []types.Idea{}
		}
		return reply(ideas), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-idea",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}",
		Summary:     "Get an idea with its gates, latest parts and latest council round",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*output[pipeline.IdeaDetail], error) {
		d, err := cfg.Service.IdeaDetail(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-idea-report",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}/report",
		Summary:     "Get the full history of an idea",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*output[store.IdeaReport], error) {
		r, err := cfg.Store.IdeaReport(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(r), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-gate",
		Method:      http.MethodPut,
		Path:        "/ideas/{idea_id}/gates/{gate}",
		Summary:     "Record a manual gate decision",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID int64       `path:"idea_id"`
		Gate   int         `path:"gate" minimum:"1" maximum:"4"`
		Body   GateRequest `json:"body"`
	}) (*output[types.GateResult], error) {
		g, err := cfg.Service.SetGate(ctx, input.IdeaID, input.Gate, input.Body.Status, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(g), nil
	})
}

func registerCouncil(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "auto-revise",
		Method:      http.MethodPost,
		Path:        "/ideas/{idea_id}/council/auto-revise",
		Summary:     "Append the latest council revisions to every dossier part",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*output[pipeline.ReviseResult], error) {
		res, err := cfg.Service.AutoRevise(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resubmit",
		Method:      http.MethodPost,
		Path:        "/ideas/{idea_id}/council/resubmit",
		Summary:     "Snapshot, revise and optionally re-run the council",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusTooManyRequests,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		IdeaID int64            `path:"idea_id"`
		Body   *ResubmitRequest `json:"body"`
	}) (*output[pipeline.ResubmitResult], error) {
		var opts pipeline.ResubmitOptions
		if b := input.Body; b != nil {
			opts = pipeline.ResubmitOptions{
				ApplyRevisions: b.ApplyRevisions,
				RunReview:      b.RunReview,
				Provider:       strings.TrimSpace(b.Provider),
				Model:          strings.TrimSpace(b.Model),
			}
		}
		res, err := cfg.Service.Resubmit(ctx, input.IdeaID, opts, session(cfg.Keyring))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rounds",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}/council/rounds",
		Summary:     "List council rounds, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*output[[]types.CouncilRound], error) {
		rounds, err := cfg.Service.Rounds(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(rounds), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-round",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}/council/rounds/{round_id}",
		Summary:     "Get a council round with its memos",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID  int64 `path:"idea_id"`
		RoundID int64 `path:"round_id"`
	}) (*output[pipeline.RoundDetail], error) {
		d, err := cfg.Service.Round(ctx, input.IdeaID, input.RoundID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(d), nil
	})
}

func registerVersions(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-snapshot",
		Method:        http.MethodPost,
		Path:          "/ideas/{idea_id}/versions",
		Summary:       "Freeze the current dossier and council memos",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID int64            `path:"idea_id"`
		Body   *SnapshotRequest `json:"body"`
	}) (*output[SnapshotResponse], error) {
		label, note := "manual", ""
		if b := input.Body; b != nil {
			if l := strings.TrimSpace(b.Label); l != "" {
				label = l
			}
			note = b.Note
		}
		id, err := cfg.Service.Snapshot(ctx, input.IdeaID, label, note)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(SnapshotResponse{VersionID: id}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-versions",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}/versions",
		Summary:     "List snapshots, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*output[[]artifacts.VersionInfo], error) {
		versions, err := cfg.Service.Versions(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(versions), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}/versions/{version_id}",
		Summary:     "Read one snapshot",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IdeaID    int64  `path:"idea_id"`
		VersionID string `path:"version_id"`
	}) (*output[artifacts.Version], error) {
		v, err := cfg.Service.Version(ctx, input.IdeaID, input.VersionID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(v), nil
	})
}
