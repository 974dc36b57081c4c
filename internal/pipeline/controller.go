// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/research-council/internal/artifacts"
	"github.com/pdiddy/research-council/internal/revision"
	"github.com/pdiddy/research-council/internal/secrets"
	"github.com/pdiddy/research-council/internal/store"
	"github.com/pdiddy/research-council/pkg/types"
)

// Snapshot labels and notes.
const (
	labelPreResubmission = "pre-resubmission"
	noteAutoRevision     = "Snapshot before auto-revision/resubmission."
	noteResubmission     = "Snapshot before council resubmission."
)

// ReviseResult reports an auto-revision.
type ReviseResult struct {
	Status    string `json:"status"`
	VersionID string `json:"version_id"`
	Revisions int    `json:"revisions"`
}

// ResubmitOptions controls a resubmission.
type ResubmitOptions struct {
	// ApplyRevisions appends the revision log to every part. Nil means true.
	ApplyRevisions *bool

	// RunReview regenerates the council review over the revised dossier.
	RunReview bool

	// Provider and Model select the backend for the review. Model defaults
	// to the provider default.
	Provider string
	Model    string
}

func (o ResubmitOptions) applyRevisions() bool {
	return o.ApplyRevisions == nil || *o.ApplyRevisions
}

// ResubmitResult reports a resubmission.
type ResubmitResult struct {
	Status    string `json:"status"`
	VersionID string `json:"version_id"`
	Revisions int    `json:"revisions"`
	ReviewRan bool   `json:"review_ran"`

	// Gate4 is set when the review ran.
	Gate4 *types.GateResult `json:"gate4,omitempty"`
}

// Snapshot freezes the latest parts and every council memo of an idea.
func (s *Service) Snapshot(ctx context.Context, ideaID int64, label, note string) (string, error) {
	unlock := s.locks.lock(ideaID)
	defer unlock()

	if _, err := s.store.GetIdea(ctx, ideaID); err != nil {
		return "", err
	}
	parts, err := s.store.ListDossierParts(ctx, ideaID)
	if err != nil {
		return "", err
	}
	memos, err := s.store.ListCouncilMemos(ctx, ideaID)
	if err != nil {
		return "", err
	}
	return s.workspace.Snapshot(ideaID, parts, memos, label, note)
}

// reviewMemos returns the memos of the latest round, or every memo when the
// idea has no rounds.
func (s *Service) reviewMemos(ctx context.Context, ideaID int64) ([]types.CouncilMemo, error) {
	round, err := s.store.LatestCouncilRound(ctx, ideaID)
	if err == nil {
		return s.store.ListRoundMemos(ctx, round.ID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.store.ListCouncilMemos(ctx, ideaID)
}

func revisionMemos(memos []types.CouncilMemo) []revision.Memo {
	out := make([]revision.Memo, len(memos))
	for i, m := range memos {
		out[i] = revision.Memo{Referee: m.Referee, Content: m.Content}
	}
	return out
}

func revisedParts(parts []types.DossierPart, log revision.Log) []types.DossierPart {
	out := make([]types.DossierPart, len(parts))
	for i, p := range parts {
		p.Content = log.Apply(p.Content)
		out[i] = p
	}
	return out
}

func resetGates(notes string, gates ...int) []types.GateResult {
	out := make([]types.GateResult, len(gates))
	for i, g := range gates {
		out[i] = types.GateResult{Gate: g, Status: types.GateNeedsRevision, Notes: notes}
	}
	return out
}

// ideaRun returns the run of an idea, used to attribute controller memos.
func (s *Service) ideaRun(ctx context.Context, idea types.Idea) (types.Run, error) {
	run, err := s.store.GetRun(ctx, idea.RunID)
	if err != nil {
		return types.Run{}, fmt.Errorf("loading run of idea %d: %w", idea.ID, err)
	}
	return run, nil
}

// AutoRevise appends the revision log of the latest council round to every
// dossier part without re-running the council. The prior state is
// snapshotted first.
func (s *Service) AutoRevise(ctx context.Context, ideaID int64) (ReviseResult, error) {
	unlock := s.locks.lock(ideaID)
	defer unlock()

	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return ReviseResult{}, err
	}
	parts, err := s.store.ListDossierParts(ctx, ideaID)
	if err != nil {
		return ReviseResult{}, err
	}
	if len(parts) == 0 {
		return ReviseResult{}, fmt.Errorf("idea %d: %w", ideaID, ErrNoDossierParts)
	}
	memos, err := s.reviewMemos(ctx, ideaID)
	if err != nil {
		return ReviseResult{}, err
	}

	versionID, err := s.workspace.Snapshot(ideaID, parts, memos, labelPreResubmission, noteAutoRevision)
	if err != nil {
		return ReviseResult{}, err
	}

	now := s.now().UTC()
	log := revision.BuildLog(s.schema, revisionMemos(memos), now)
	ts := now.Format(revision.TimestampLayout)
	memo := &types.AgentMemo{
		RunID: idea.RunID, IdeaID: &ideaID, Direction: types.DirectionOutbox,
		Sender: roleAutoRevise, Topic: topicAutoRevision,
		Content: memoBody(
			"Context: Auto-Revision Engine applied council-required revisions.",
			"Decision/Recommendation: Treat as resubmission-ready; request council re-review.",
			"Evidence or reasoning: Revisions extracted from council memos; no execution performed.",
			"Next action (owner): PI Proxy Agent to trigger council review and update gates.",
			log.Text,
		),
	}
	res, err := s.store.ApplyRevision(ctx, store.Revision{
		IdeaID: ideaID,
		Parts:  revisedParts(parts, log),
		Status: types.IdeaResubmitted,
		Gates: resetGates(fmt.Sprintf("Auto-revision applied %s UTC; ready for council resubmission.", ts),
			types.GateDesign, types.GateData, types.GateCouncil),
		Memo: memo,
	})
	if err != nil {
		return ReviseResult{}, err
	}
	if err := s.mailbox(*res.Memo); err != nil {
		return ReviseResult{}, err
	}
	if err := s.export(ctx, ideaID, memos); err != nil {
		return ReviseResult{}, err
	}

	s.logger.Info("idea auto-revised", "idea_id", ideaID, "version", versionID, "revisions", log.Count())
	s.printf("idea %d: auto-revised, %d revisions, snapshot %s\n", ideaID, log.Count(), versionID)
	return ReviseResult{Status: "revised", VersionID: versionID, Revisions: log.Count()}, nil
}

// Resubmit snapshots an idea, optionally appends the revision log over all
// council memos, resets gates 2 to 4 and optionally regenerates the council
// review. Review preconditions are checked before anything is written, and
// the review is generated before the revision is committed, so a backend
// failure leaves only the snapshot behind.
func (s *Service) Resubmit(ctx context.Context, ideaID int64, opts ResubmitOptions, sess *secrets.Session) (ResubmitResult, error) {
	unlock := s.locks.lock(ideaID)
	defer unlock()

	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return ResubmitResult{}, err
	}
	parts, err := s.store.ListDossierParts(ctx, ideaID)
	if err != nil {
		return ResubmitResult{}, err
	}
	if len(parts) == 0 {
		return ResubmitResult{}, fmt.Errorf("idea %d: %w", ideaID, ErrNoDossierParts)
	}

	var review stageRunner
	if opts.RunReview {
		if opts.Provider == "" {
			return ResubmitResult{}, fmt.Errorf("%w: provider is required to run a review", ErrInvalidRequest)
		}
		gen, model, err := s.generator(opts.Provider, opts.Model)
		if err != nil {
			return ResubmitResult{}, err
		}
		key, err := s.apiKey(ctx, opts.Provider, sess)
		if err != nil {
			return ResubmitResult{}, err
		}
		review = stageRunner{gen: gen, model: model, apiKey: key}
	}
	run, err := s.ideaRun(ctx, idea)
	if err != nil {
		return ResubmitResult{}, err
	}

	memos, err := s.store.ListCouncilMemos(ctx, ideaID)
	if err != nil {
		return ResubmitResult{}, err
	}
	versionID, err := s.workspace.Snapshot(ideaID, parts, memos, labelPreResubmission, noteResubmission)
	if err != nil {
		return ResubmitResult{}, err
	}

	now := s.now().UTC()
	rev := store.Revision{
		IdeaID: ideaID,
		Status: types.IdeaResubmitted,
		Gates: resetGates(fmt.Sprintf("Resubmitted %s UTC.", now.Format(revision.TimestampLayout)),
			types.GateDesign, types.GateData, types.GateCouncil),
	}
	result := ResubmitResult{Status: "resubmitted", VersionID: versionID}
	dossier := parts
	if opts.applyRevisions() {
		log := revision.BuildLog(s.schema, revisionMemos(memos), now)
		rev.Parts = revisedParts(parts, log)
		dossier = rev.Parts
		result.Revisions = log.Count()
	}

	if opts.RunReview {
		if err := s.draftReview(ctx, run, ideaID, dossier, review, &rev); err != nil {
			return ResubmitResult{}, err
		}
	}

	res, err := s.store.ApplyRevision(ctx, rev)
	if err != nil {
		return ResubmitResult{}, err
	}
	s.printf("idea %d: resubmitted, %d revisions, snapshot %s\n", ideaID, result.Revisions, versionID)

	if !opts.RunReview {
		return result, s.export(ctx, ideaID, memos)
	}

	if err := s.mailbox(*res.Memo); err != nil {
		return ResubmitResult{}, err
	}
	if err := s.export(ctx, ideaID, res.RoundMemos); err != nil {
		return ResubmitResult{}, err
	}
	g, err := s.gate(ctx, ideaID, types.GateCouncil)
	if err != nil {
		return ResubmitResult{}, err
	}
	s.printf("idea %d: council round %d, gate 4 %s\n", ideaID, res.Round.RoundNumber, g.Status)

	result.ReviewRan = true
	result.Gate4 = &g
	s.logger.Info("idea resubmitted", "idea_id", ideaID, "version", versionID, "gate4", g.Status)
	return result, nil
}

// draftReview reviews the given dossier in one generation and adds the new
// round, its audit memo and the Gate 4 outcome to rev. Nothing is stored.
func (s *Service) draftReview(ctx context.Context, run types.Run, ideaID int64, parts []types.DossierPart, r stageRunner, rev *store.Revision) error {
	latest := types.LatestPerKind(parts)
	dossier := make(map[types.DossierKind]string, len(latest))
	for _, p := range latest {
		dossier[p.Kind] = p.Content
	}
	p, err := s.prompts.CouncilWithDossier(dossier, run.TopicFocus)
	if err != nil {
		return err
	}
	content, err := r.generate(ctx, p)
	if err != nil {
		return &generationError{stage: "council re-review", ideaID: ideaID, err: err}
	}

	memos := s.councilMemos(content)
	scored := s.scoreCouncil(memos)
	rev.Round = &store.RoundDraft{Memos: memos, Status: string(scored.Status), Notes: scored.Notes}
	rev.Gates = append(rev.Gates, types.GateResult{Gate: types.GateCouncil, Status: scored.Status, Notes: scored.Notes})
	rev.Memo = &types.AgentMemo{
		RunID: run.ID, IdeaID: &ideaID, Direction: types.DirectionOutbox,
		Sender: roleCouncil, Topic: topicResubmission,
		Content: memoBody(
			"Context: Council re-review generated for resubmission.",
			"Decision/Recommendation: Log updated memos and re-open Gate 4.",
			"Evidence or reasoning: LLM council run on updated dossier content.",
			"Next action (owner): PI Proxy Agent to update gate status and route revisions.",
			content,
		),
	}
	s.logger.Debug("gate 4 scored", "idea_id", ideaID, "status", scored.Status)
	return nil
}

func (s *Service) gate(ctx context.Context, ideaID int64, n int) (types.GateResult, error) {
	gates, err := s.store.ListGates(ctx, ideaID)
	if err != nil {
		return types.GateResult{}, err
	}
	for _, g := range gates {
		if g.Gate == n {
			return g, nil
		}
	}
	return types.GateResult{}, fmt.Errorf("gate %d of idea %d: %w", n, ideaID, store.ErrNotFound)
}

// IdeaDetail is an idea with its gates, latest parts and latest round.
type IdeaDetail struct {
	Idea  types.Idea          `json:"idea" yaml:"idea"`
	Gates []types.GateResult  `json:"gates" yaml:"gates"`
	Parts []types.DossierPart `json:"dossier_parts" yaml:"dossier_parts"`
	Round *types.CouncilRound `json:"council_round,omitempty" yaml:"council_round,omitempty"`
	Memos []types.CouncilMemo `json:"council_memos" yaml:"council_memos"`
}

// IdeaDetail loads the current state of an idea. Memos belong to the latest
// round; an idea without rounds lists every memo.
func (s *Service) IdeaDetail(ctx context.Context, ideaID int64) (IdeaDetail, error) {
	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return IdeaDetail{}, err
	}
	gates, err := s.store.ListGates(ctx, ideaID)
	if err != nil {
		return IdeaDetail{}, err
	}
	parts, err := s.store.LatestDossierParts(ctx, ideaID)
	if err != nil {
		return IdeaDetail{}, err
	}
	d := IdeaDetail{Idea: idea, Gates: gates, Parts: parts}
	round, err := s.store.LatestCouncilRound(ctx, ideaID)
	switch {
	case err == nil:
		d.Round = &round
		d.Memos, err = s.store.ListRoundMemos(ctx, round.ID)
	case errors.Is(err, store.ErrNotFound):
		d.Memos, err = s.store.ListCouncilMemos(ctx, ideaID)
	}
	if err != nil {
		return IdeaDetail{}, err
	}
	if d.Gates == nil {
		d.Gates = []types.GateResult{}
	}
	if d.Parts == nil {
		d.Parts = []types.DossierPart{}
	}
	if d.Memos == nil {
		d.Memos = []types.CouncilMemo{}
	}
	return d, nil
}

// Versions lists the snapshots of an idea, newest first.
func (s *Service) Versions(ctx context.Context, ideaID int64) ([]artifacts.VersionInfo, error) {
	if _, err := s.store.GetIdea(ctx, ideaID); err != nil {
		return nil, err
	}
	return s.workspace.ListVersions(ideaID)
}

// Version reads one snapshot of an idea.
func (s *Service) Version(ctx context.Context, ideaID int64, versionID string) (artifacts.Version, error) {
	if _, err := s.store.GetIdea(ctx, ideaID); err != nil {
		return artifacts.Version{}, err
	}
	return s.workspace.GetVersion(ideaID, versionID)
}

// RoundDetail is a council round with its memos.
type RoundDetail struct {
	Round types.CouncilRound  `json:"round" yaml:"round"`
	Memos []types.CouncilMemo `json:"memos" yaml:"memos"`
}

// Rounds lists the council rounds of an idea, newest first.
func (s *Service) Rounds(ctx context.Context, ideaID int64) ([]types.CouncilRound, error) {
	if _, err := s.store.GetIdea(ctx, ideaID); err != nil {
		return nil, err
	}
	rounds, err := s.store.ListCouncilRounds(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	if rounds == nil {
		rounds = []types.CouncilRound{}
	}
	return rounds, nil
}

// Round reads one council round of an idea with its memos.
func (s *Service) Round(ctx context.Context, ideaID, roundID int64) (RoundDetail, error) {
	round, err := s.store.GetCouncilRound(ctx, ideaID, roundID)
	if err != nil {
		return RoundDetail{}, err
	}
	memos, err := s.store.ListRoundMemos(ctx, round.ID)
	if err != nil {
		return RoundDetail{}, err
	}
	if memos == nil {
		memos = []types.CouncilMemo{}
	}
	return RoundDetail{Round: round, Memos: memos}, nil
}

// SetGate records a manual gate decision. Notes are trimmed.
func (s *Service) SetGate(ctx context.Context, ideaID int64, gateNum int, status types.GateStatus, notes string) (types.GateResult, error) {
	unlock := s.locks.lock(ideaID)
	defer unlock()

	if _, err := s.store.GetIdea(ctx, ideaID); err != nil {
		return types.GateResult{}, err
	}
	if err := s.store.UpsertGate(ctx, ideaID, gateNum, status, strings.TrimSpace(notes)); err != nil {
		return types.GateResult{}, err
	}
	return s.gate(ctx, ideaID, gateNum)
}
