// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-council/internal/artifacts"
	"github.com/pdiddy/research-council/internal/pipeline"
	"github.com/pdiddy/research-council/internal/provider"
	"github.com/pdiddy/research-council/internal/secrets"
	"github.com/pdiddy/research-council/internal/store"
	"github.com/pdiddy/research-council/pkg/types"
)

// --- test helpers ---

// echoGenerator answers every prompt with a headerless pitch, and fails on
// the special models "limited" and "broken".
type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, _, model, _ string) (string, error) {
	switch model {
	case "limited":
		return "", &provider.Error{Provider: "fake", Kind: provider.KindRateLimit, StatusCode: 429, Message: "slow down"}
	case "broken":
		return "", &provider.Error{Provider: "fake", Kind: provider.KindStatus, StatusCode: 500, Message: "boom"}
	}
	return "OK\n", nil
}

type testEnv struct {
	srv     *httptest.Server
	svc     *pipeline.Service
	store   *store.Store
	keyring *secrets.Keyring
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.OpenWorkspace(dir)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := provider.NewStaticRegistry(map[string]provider.Generator{"fake": echoGenerator{}})
	svc, err := pipeline.New(pipeline.Options{
		Store:     st,
		Workspace: artifacts.New(dir),
		Providers: reg,
		Keys:      map[string]string{secrets.KeyName("fake"): "file-key"},
	})
	require.NoError(t, err)

	keyring := &secrets.Keyring{}
	handler, err := New(Config{Service: svc, Store: st, Keyring: keyring, Providers: reg})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, svc: svc, store: st, keyring: keyring}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+DefaultBasePath+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

// seedDossier stores an idea with two parts and one council round.
func (e *testEnv) seedDossier(t *testing.T) types.Idea {
	t.Helper()
	ctx := context.Background()
	run, err := e.store.CreateRun(ctx, types.Run{Provider: "fake", Model: "m", IdeaCount: 1})
	require.NoError(t, err)
	idea, err := e.store.CreateIdea(ctx, run.ID)
	require.NoError(t, err)
	_, err = e.store.AddDossierPart(ctx, idea.ID, types.KindPitch, "pitch text")
	require.NoError(t, err)
	_, err = e.store.AddDossierPart(ctx, idea.ID, types.KindDesign, "design text")
	require.NoError(t, err)
	_, _, err = e.store.CreateCouncilRound(ctx, idea.ID, []types.CouncilMemo{
		{Referee: "Referee A", Content: "Verdict: revise\nRequired revisions\n- Tighten the estimand"},
		{Referee: "Referee B", Content: "Verdict: accept\nRequired revisions\n1. Add a placebo test"},
	})
	require.NoError(t, err)
	return idea
}

// --- tests ---

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, data := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, data)["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestProviders(t *testing.T) {
	e := newTestEnv(t)
	resp, data := e.do(t, http.MethodGet, "/providers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []ProviderInfo{{Name: "fake"}}, decode[[]ProviderInfo](t, data))

	tests := []struct {
		name   string
		path   string
		model  string
		status int
		code   string
	}{
		{"ok", "/providers/fake/test", "m1", http.StatusOK, ""},
		{"rate limited", "/providers/fake/test", "limited", http.StatusTooManyRequests, "rate_limited"},
		{"upstream failure", "/providers/fake/test", "broken", http.StatusBadGateway, "provider_error"},
		{"unknown provider", "/providers/nope/test", "m1", http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := e.do(t, http.MethodPost, tt.path, ProviderTestRequest{Model: tt.model})
			require.Equal(t, tt.status, resp.StatusCode, string(data))
			if tt.code == "" {
				check := decode[pipeline.ProviderCheck](t, data)
				assert.Equal(t, "OK", check.Response)
				assert.Equal(t, "m1", check.Model)
				return
			}
			assert.Equal(t, tt.code, decode[errorEnvelope](t, data).Error.Code)
		})
	}
}

func TestSessionAndCredentials(t *testing.T) {
	e := newTestEnv(t)

	resp, data := e.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[SessionResponse](t, data).Unlocked)

	resp, data = e.do(t, http.MethodPost, "/credentials", CredentialRequest{Provider: "fake", APIKey: "sk-1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(data))
	assert.Equal(t, "session_locked", decode[errorEnvelope](t, data).Error.Code)

	resp, data = e.do(t, http.MethodPost, "/session/unlock", UnlockRequest{Passphrase: "first"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	s := decode[SessionResponse](t, data)
	assert.True(t, s.Unlocked)
	assert.NotNil(t, s.UnlockedAt)

	resp, data = e.do(t, http.MethodPost, "/credentials", CredentialRequest{Provider: "fake", Name: "main", APIKey: "sk-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	assert.NotContains(t, string(data), "ciphertext")

	resp, data = e.do(t, http.MethodGet, "/credentials", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	creds := decode[[]types.Credential](t, data)
	require.Len(t, creds, 1)
	assert.Equal(t, "main", creds[0].Name)

	// A different passphrase cannot open the stored key.
	resp, _ = e.do(t, http.MethodPost, "/session/unlock", UnlockRequest{Passphrase: "second"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, data = e.do(t, http.MethodPost, "/providers/fake/test", ProviderTestRequest{Model: "m1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(data))
	assert.Equal(t, "wrong_passphrase", decode[errorEnvelope](t, data).Error.Code)

	resp, data = e.do(t, http.MethodPost, "/session/lock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[SessionResponse](t, data).Unlocked)
	assert.False(t, e.keyring.Unlocked())

	// Locked with a stored credential: the key cannot be opened.
	resp, data = e.do(t, http.MethodPost, "/providers/fake/test", ProviderTestRequest{Model: "m1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(data))
}

func TestUnlock_EmptyPassphrase(t *testing.T) {
	e := newTestEnv(t)
	resp, data := e.do(t, http.MethodPost, "/session/unlock", UnlockRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
}

func TestRuns(t *testing.T) {
	e := newTestEnv(t)

	resp, data := e.do(t, http.MethodPost, "/runs", pipeline.RunRequest{Provider: "fake", Model: "m1", IdeaCount: 2})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))
	run := decode[types.Run](t, data)
	assert.Equal(t, types.RunQueued, run.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.svc.Wait(ctx))

	resp, data = e.do(t, http.MethodGet, "/runs/"+itoa(run.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	detail := decode[RunDetail](t, data)
	assert.Equal(t, types.RunCompleted, detail.Run.Status)
	assert.Len(t, detail.Ideas, 2)

	resp, data = e.do(t, http.MethodPost, "/runs", pipeline.RunRequest{Provider: "nope", IdeaCount: 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

	resp, data = e.do(t, http.MethodPost, "/runs", pipeline.RunRequest{Provider: "fake", Model: "m1", IdeaCount: 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

	resp, _ = e.do(t, http.MethodGet, "/runs/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRuns_DefaultLimit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := e.store.CreateRun(ctx, types.Run{Provider: "fake", Model: "m", IdeaCount: 1})
		require.NoError(t, err)
	}

	resp, data := e.do(t, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := decode[[]types.Run](t, data)
	require.Len(t, runs, 5)
	assert.Equal(t, int64(7), runs[0].ID)

	resp, data = e.do(t, http.MethodGet, "/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]types.Run](t, data), 2)
}

func TestLiteratureAssessment(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/literature/3/assessment", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data := e.do(t, http.MethodPut, "/literature/3/assessment", AssessmentRequest{Content: "Idea prompts:\n- one"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = e.do(t, http.MethodGet, "/literature/3/assessment", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a := decode[types.LiteratureAssessment](t, data)
	assert.Equal(t, int64(3), a.QueryID)
	assert.Equal(t, "Idea prompts:\n- one", a.Content)
}

func TestIdeaEndpoints(t *testing.T) {
	e := newTestEnv(t)
	idea := e.seedDossier(t)
	base := "/ideas/" + itoa(idea.ID)

	resp, data := e.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	detail := decode[pipeline.IdeaDetail](t, data)
	assert.Len(t, detail.Parts, 2)
	require.NotNil(t, detail.Round)
	assert.Len(t, detail.Memos, 2)

	resp, data = e.do(t, http.MethodGet, "/ideas", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]types.Idea](t, data), 1)

	resp, data = e.do(t, http.MethodPut, base+"/gates/2", GateRequest{Status: types.GatePassed, Notes: "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	g := decode[types.GateResult](t, data)
	assert.Equal(t, types.GatePassed, g.Status)
	assert.Equal(t, 2, g.Gate)

	resp, data = e.do(t, http.MethodPut, base+"/gates/9", GateRequest{Status: types.GatePassed})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
	resp, data = e.do(t, http.MethodPut, base+"/gates/2", map[string]string{"status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

	resp, data = e.do(t, http.MethodGet, base+"/report", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	report := decode[store.IdeaReport](t, data)
	require.Len(t, report.Rounds, 1)
	assert.Len(t, report.Rounds[0].Memos, 2)

	resp, _ = e.do(t, http.MethodGet, "/ideas/404", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAutoReviseAndVersions(t *testing.T) {
	e := newTestEnv(t)
	idea := e.seedDossier(t)
	base := "/ideas/" + itoa(idea.ID)

	resp, data := e.do(t, http.MethodPost, base+"/council/auto-revise", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	res := decode[pipeline.ReviseResult](t, data)
	assert.Equal(t, "revised", res.Status)
	assert.Equal(t, 2, res.Revisions)

	resp, data = e.do(t, http.MethodGet, base+"/versions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	versions := decode[[]artifacts.VersionInfo](t, data)
	require.Len(t, versions, 1)
	assert.Equal(t, res.VersionID, versions[0].ID)
	assert.Equal(t, "pre-resubmission", versions[0].Label)

	resp, data = e.do(t, http.MethodGet, base+"/versions/"+res.VersionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	v := decode[artifacts.Version](t, data)
	assert.Len(t, v.Parts, 2)
	assert.Len(t, v.Memos, 2)

	resp, _ = e.do(t, http.MethodGet, base+"/versions/19990101000000", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = e.do(t, http.MethodPost, base+"/versions", SnapshotRequest{Label: "checkpoint"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	assert.NotEmpty(t, decode[SnapshotResponse](t, data).VersionID)
}

func TestAutoRevise_NoParts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	run, err := e.store.CreateRun(ctx, types.Run{Provider: "fake", Model: "m", IdeaCount: 1})
	require.NoError(t, err)
	idea, err := e.store.CreateIdea(ctx, run.ID)
	require.NoError(t, err)

	resp, data := e.do(t, http.MethodPost, "/ideas/"+itoa(idea.ID)+"/council/auto-revise", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorEnvelope](t, data).Error.Message, "no dossier parts")

	resp, _ = e.do(t, http.MethodPost, "/ideas/404/council/auto-revise", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResubmitAndRounds(t *testing.T) {
	e := newTestEnv(t)
	idea := e.seedDossier(t)
	base := "/ideas/" + itoa(idea.ID)

	resp, data := e.do(t, http.MethodPost, base+"/council/resubmit", ResubmitRequest{RunReview: true, Provider: "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

	resp, data = e.do(t, http.MethodPost, base+"/council/resubmit", ResubmitRequest{RunReview: true, Provider: "fake", Model: "limited"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, string(data))

	resp, data = e.do(t, http.MethodPost, base+"/council/resubmit", ResubmitRequest{RunReview: true, Provider: "fake", Model: "m1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	res := decode[pipeline.ResubmitResult](t, data)
	assert.Equal(t, "resubmitted", res.Status)
	assert.True(t, res.ReviewRan)
	require.NotNil(t, res.Gate4)
	assert.Equal(t, types.GateNeedsRevision, res.Gate4.Status)

	resp, data = e.do(t, http.MethodGet, base+"/council/rounds", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rounds := decode[[]types.CouncilRound](t, data)
	require.GreaterOrEqual(t, len(rounds), 2)

	resp, data = e.do(t, http.MethodGet, base+"/council/rounds/"+itoa(rounds[0].ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	round := decode[pipeline.RoundDetail](t, data)
	require.Len(t, round.Memos, 1)
	assert.Equal(t, "OK", round.Memos[0].Content)

	resp, data = e.do(t, http.MethodPost, base+"/council/resubmit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.False(t, decode[pipeline.ResubmitResult](t, data).ReviewRan)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{artifacts.ErrVersionNotFound, http.StatusNotFound},
		{secrets.ErrLocked, http.StatusUnauthorized},
		{store.ErrRunTransition, http.StatusConflict},
		{pipeline.ErrNoDossierParts, http.StatusBadRequest},
		{pipeline.ErrMissingCredentials, http.StatusBadRequest},
		{&provider.Error{Kind: provider.KindRateLimit}, http.StatusTooManyRequests},
		{&provider.Error{Kind: provider.KindAuth}, http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, handleError(tt.err).GetStatus(), tt.err.Error())
	}
	assert.Nil(t, handleError(nil))
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
