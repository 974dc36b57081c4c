// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives idea dossiers from a bare run request through
// pitch validation, section generation and council review, and owns the
// snapshot, revise and resubmit operations that follow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/research-council/internal/artifacts"
	"github.com/pdiddy/research-council/internal/prompt"
	"github.com/pdiddy/research-council/internal/provider"
	"github.com/pdiddy/research-council/internal/schema"
	"github.com/pdiddy/research-council/internal/secrets"
	"github.com/pdiddy/research-council/internal/store"
	"github.com/pdiddy/research-council/pkg/types"
)

var (
	// ErrNoDossierParts rejects a revise or resubmit on an idea with no parts.
	ErrNoDossierParts = errors.New("no dossier parts to revise or resubmit")

	// ErrUnknownProvider is returned for a provider name not in the registry.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingCredentials is returned when neither a stored credential nor
	// a key file exists for the provider.
	ErrMissingCredentials = errors.New("missing credentials for provider")

	// ErrModelRequired is returned when no model is given and the provider
	// has no default.
	ErrModelRequired = errors.New("model required for provider")

	// ErrInvalidRequest rejects a malformed run request.
	ErrInvalidRequest = errors.New("invalid request")
)

// MaxIdeasPerRun bounds the idea count of one run.
const MaxIdeasPerRun = 20

// Options wires a Service.
type Options struct {
	Store     *store.Store
	Workspace *artifacts.Workspace
	Providers *provider.Registry

	// Schema defaults to schema.Default().
	Schema *schema.Schema

	// Mode names the prompt set; empty selects ideation.
	Mode string

	// Keys holds file-backed API keys, consulted when no credential is stored.
	Keys map[string]string

	Logger *slog.Logger

	// Progress receives one line per pipeline step. Defaults to io.Discard.
	Progress io.Writer

	// Now is the clock for revision logs and gate notes.
	Now func() time.Time
}

// Service runs the dossier pipeline and the resubmission controller.
type Service struct {
	store     *store.Store
	workspace *artifacts.Workspace
	providers *provider.Registry
	schema    *schema.Schema
	prompts   *prompt.Builder
	keys      map[string]string
	logger    *slog.Logger
	now       func() time.Time

	progressMu sync.Mutex
	progress   io.Writer

	locks *ideaLocks
	tasks sync.WaitGroup
}

// New validates opts and returns a Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Workspace == nil || opts.Providers == nil {
		return nil, errors.New("pipeline: store, workspace and providers are required")
	}
	s := opts.Schema
	if s == nil {
		s = schema.Default()
	}
	builder, err := prompt.NewBuilder(s, opts.Mode)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		store:     opts.Store,
		workspace: opts.Workspace,
		providers: opts.Providers,
		schema:    s,
		prompts:   builder,
		keys:      opts.Keys,
		logger:    opts.Logger,
		now:       opts.Now,
		progress:  opts.Progress,
		locks:     newIdeaLocks(),
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.progress == nil {
		svc.progress = io.Discard
	}
	if svc.keys == nil {
		svc.keys = map[string]string{}
	}
	return svc, nil
}

// Schema returns the council schema in use.
func (s *Service) Schema() *schema.Schema {
	return s.schema
}

func (s *Service) printf(format string, args ...any) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	fmt.Fprintf(s.progress, format, args...)
}

// generator resolves a provider name and model.
func (s *Service) generator(name, model string) (provider.Generator, string, error) {
	gen, ok := s.providers.Get(name)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	resolved, ok := provider.ResolveModel(name, model)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrModelRequired, name)
	}
	return gen, resolved, nil
}

// apiKey returns the key for a provider: the latest stored credential opened
// with sess, or the file-backed key when none is stored.
func (s *Service) apiKey(ctx context.Context, name string, sess *secrets.Session) (string, error) {
	cred, err := s.store.LatestCredential(ctx, name)
	switch {
	case err == nil:
		if sess == nil {
			return "", secrets.ErrLocked
		}
		key, err := sess.Open(secrets.Sealed{Ciphertext: cred.Ciphertext, Nonce: cred.Nonce, Salt: cred.Salt})
		if err != nil {
			return "", fmt.Errorf("opening %s credential: %w", name, err)
		}
		return key, nil
	case errors.Is(err, store.ErrNotFound):
		if key, ok := secrets.APIKey(s.keys, name); ok {
			return key, nil
		}
		return "", fmt.Errorf("%w: %s", ErrMissingCredentials, name)
	default:
		return "", err
	}
}

// AddCredential seals apiKey under sess and stores it for a provider.
func (s *Service) AddCredential(ctx context.Context, name, label, apiKey string, sess *secrets.Session) (types.Credential, error) {
	if _, ok := s.providers.Get(name); !ok {
		return types.Credential{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	if sess == nil {
		return types.Credential{}, secrets.ErrLocked
	}
	if strings.TrimSpace(apiKey) == "" {
		return types.Credential{}, fmt.Errorf("%w: api key is empty", ErrInvalidRequest)
	}
	sealed, err := sess.Seal(strings.TrimSpace(apiKey))
	if err != nil {
		return types.Credential{}, fmt.Errorf("sealing credential: %w", err)
	}
	return s.store.AddCredential(ctx, types.Credential{
		Provider: name, Name: label,
		Ciphertext: sealed.Ciphertext, Nonce: sealed.Nonce, Salt: sealed.Salt,
	})
}

// pingPrompt is the connectivity check sent by TestProvider.
const pingPrompt = "Reply with OK if you can read this."

// ProviderCheck is the outcome of a connectivity check.
type ProviderCheck struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Response string `json:"response"`
}

// TestProvider sends a one-line prompt to a provider with the resolved key.
func (s *Service) TestProvider(ctx context.Context, name, model string, sess *secrets.Session) (ProviderCheck, error) {
	gen, resolved, err := s.generator(name, model)
	if err != nil {
		return ProviderCheck{}, err
	}
	key, err := s.apiKey(ctx, name, sess)
	if err != nil {
		return ProviderCheck{}, err
	}
	text, err := gen.Generate(ctx, pingPrompt, resolved, key)
	if err != nil {
		return ProviderCheck{}, err
	}
	return ProviderCheck{Provider: name, Model: resolved, Response: strings.TrimSpace(text)}, nil
}

// Memo senders and topics.
const (
	roleIdeator     = "Ideator Agent"
	roleTheory      = "Theory Architect"
	roleData        = "Data Feasibility Agent"
	roleMeasurement = "Measurement Agent"
	rolePIProxy     = "PI Proxy Agent"
	roleCouncil     = "Council Agents"
	roleAutoRevise  = "Auto-Revision Engine"

	topicPitch        = "PITCH"
	topicCouncil      = "Council"
	topicAutoRevision = "Council Auto-Revision"
	topicResubmission = "Council Resubmission"
)

// wrapMemo renders the four-field audit template around generated content.
func wrapMemo(role, topic, content string) string {
	return memoBody(
		fmt.Sprintf("Context: %s produced %s for the idea dossier.", role, topic),
		"Decision/Recommendation: Review and route for gate checks.",
		"Evidence or reasoning: Generated by the agent per template.",
		"Next action (owner): PI Proxy Agent to log and enforce gates.",
		content,
	)
}

func memoBody(context, decision, evidence, next, content string) string {
	return strings.Join([]string{context, decision, evidence, next, "", strings.TrimSpace(content)}, "\n")
}

// recordMemo stores an outbox memo and mirrors it to the mailbox.
func (s *Service) recordMemo(ctx context.Context, runID, ideaID int64, sender, topic, content string) error {
	m, err := s.store.AddAgentMemo(ctx, types.AgentMemo{
		RunID: runID, IdeaID: &ideaID, Direction: types.DirectionOutbox,
		Sender: sender, Topic: topic, Content: content,
	})
	if err != nil {
		return err
	}
	return s.mailbox(m)
}

func (s *Service) mailbox(m types.AgentMemo) error {
	path, err := s.workspace.WriteMailbox(m)
	if err != nil {
		return fmt.Errorf("writing mailbox for memo %d: %w", m.ID, err)
	}
	s.logger.Debug("mailbox written", "memo_id", m.ID, "path", path)
	return nil
}

// export regenerates the Markdown files of an idea from the store.
func (s *Service) export(ctx context.Context, ideaID int64, memos []types.CouncilMemo) error {
	parts, err := s.store.ListDossierParts(ctx, ideaID)
	if err != nil {
		return err
	}
	if err := s.workspace.ExportIdea(ideaID, parts, memos); err != nil {
		return fmt.Errorf("exporting idea %d: %w", ideaID, err)
	}
	return nil
}

// ideaLocks serializes mutations of one idea across the pipeline and the
// controller. Entries are dropped when no holder or waiter remains.
type ideaLocks struct {
	mu    sync.Mutex
	locks map[int64]*ideaLock
}

type ideaLock struct {
	mu   sync.Mutex
	refs int
}

func newIdeaLocks() *ideaLocks {
	return &ideaLocks{locks: make(map[int64]*ideaLock)}
}

// lock blocks until the idea is free and returns the release func.
func (l *ideaLocks) lock(ideaID int64) func() {
	l.mu.Lock()
	il, ok := l.locks[ideaID]
	if !ok {
		il = &ideaLock{}
		l.locks[ideaID] = il
	}
	il.refs++
	l.mu.Unlock()

	il.mu.Lock()
	return func() {
		il.mu.Unlock()
		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.locks, ideaID)
		}
		l.mu.Unlock()
	}
}

func (l *ideaLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
