// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/research-council/internal/gate"
	"github.com/pdiddy/research-council/internal/parse"
	"github.com/pdiddy/research-council/internal/prompt"
	"github.com/pdiddy/research-council/internal/provider"
	"github.com/pdiddy/research-council/internal/secrets"
	"github.com/pdiddy/research-council/internal/store"
	"github.com/pdiddy/research-council/pkg/types"
)

// RunRequest asks for a new generation batch.
type RunRequest struct {
	Provider           string `json:"provider"`
	Model              string `json:"model,omitempty"`
	IdeaCount          int    `json:"idea_count"`
	TopicFocus         string `json:"topic_focus,omitempty"`
	LiteratureQueryID  *int64 `json:"literature_query_id,omitempty"`
	UseAssessmentSeeds bool   `json:"use_assessment_seeds,omitempty"`
}

// RunSummary counts what one run produced.
type RunSummary struct {
	Ideas         int
	Gate1Passed   int
	Gate1Failed   int
	CouncilRounds int
}

// Total returns the number of ideas processed.
func (s RunSummary) Total() int {
	return s.Gate1Passed + s.Gate1Failed
}

// section is one post-pitch dossier stage.
type section struct {
	stage prompt.Stage
	kind  types.DossierKind
	role  string
}

// sections run in this order once Gate 1 passes.
var sections = []section{
	{prompt.StageDesign, types.KindDesign, roleTheory},
	{prompt.StageDataPlan, types.KindDataPlan, roleData},
	{prompt.StagePositioning, types.KindPositioning, roleMeasurement},
	{prompt.StageNextSteps, types.KindNextSteps, rolePIProxy},
}

// maxGate1Retries bounds the corrective pitch prompts.
const maxGate1Retries = 2

// StartRun validates req, records a queued run and processes it in the
// background. Provider, model and credential problems are rejected here,
// before the run exists.
func (s *Service) StartRun(ctx context.Context, req RunRequest, sess *secrets.Session) (types.Run, error) {
	if req.IdeaCount < 1 || req.IdeaCount > MaxIdeasPerRun {
		return types.Run{}, fmt.Errorf("%w: idea count must be between 1 and %d", ErrInvalidRequest, MaxIdeasPerRun)
	}
	_, model, err := s.generator(req.Provider, req.Model)
	if err != nil {
		return types.Run{}, err
	}
	if _, err := s.apiKey(ctx, req.Provider, sess); err != nil {
		return types.Run{}, err
	}
	if req.LiteratureQueryID != nil {
		if _, err := s.store.GetLiteratureAssessment(ctx, *req.LiteratureQueryID); err != nil {
			return types.Run{}, err
		}
	}

	run, err := s.store.CreateRun(ctx, types.Run{
		Provider:           req.Provider,
		Model:              model,
		IdeaCount:          req.IdeaCount,
		TopicFocus:         strings.TrimSpace(req.TopicFocus),
		LiteratureQueryID:  req.LiteratureQueryID,
		UseAssessmentSeeds: req.UseAssessmentSeeds,
	})
	if err != nil {
		return types.Run{}, err
	}
	s.Enqueue(run.ID, sess)
	return run, nil
}

// Enqueue processes a queued run on its own goroutine. The task is detached
// from any request context; Wait drains outstanding tasks.
func (s *Service) Enqueue(runID int64, sess *secrets.Session) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		if _, err := s.ProcessRun(context.Background(), runID, sess); err != nil {
			s.logger.Error("run failed", "run_id", runID, "error", err)
		}
	}()
}

// Wait blocks until every enqueued run has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessRun moves a queued run through the pipeline. Any error after the
// run is marked running fails the run with the error text as its log;
// ideas and parts already stored are kept.
func (s *Service) ProcessRun(ctx context.Context, runID int64, sess *secrets.Session) (RunSummary, error) {
	if err := s.store.MarkRunRunning(ctx, runID); err != nil {
		return RunSummary{}, err
	}
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}
	log := s.logger.With("run_id", runID, "provider", run.Provider, "model", run.Model)
	log.Info("run started", "ideas", run.IdeaCount)
	s.printf("run %d: generating %d ideas with %s/%s\n", runID, run.IdeaCount, run.Provider, run.Model)

	summary, err := s.processRun(ctx, run, sess)
	if err != nil {
		if ferr := s.store.FailRun(ctx, runID, runLog(err)); ferr != nil {
			log.Error("recording run failure", "error", ferr)
		}
		s.printf("run %d: failed: %v\n", runID, err)
		return summary, err
	}
	if err := s.store.CompleteRun(ctx, runID); err != nil {
		return summary, err
	}
	log.Info("run completed", "gate1_passed", summary.Gate1Passed, "gate1_failed", summary.Gate1Failed)
	s.printf("run %d: done, %d ideas, %d passed gate 1, %d failed\n",
		runID, summary.Total(), summary.Gate1Passed, summary.Gate1Failed)
	return summary, nil
}

// stageRunner carries what every generation of one run needs.
type stageRunner struct {
	gen    provider.Generator
	model  string
	apiKey string
	run    types.Run
	inputs prompt.Inputs
}

func (r stageRunner) generate(ctx context.Context, p string) (string, error) {
	return r.gen.Generate(ctx, p, r.model, r.apiKey)
}

// generationError is a backend failure during one stage of an idea.
type generationError struct {
	stage  string
	ideaID int64
	err    error
}

func (e *generationError) Error() string {
	return fmt.Sprintf("generating %s for idea %d: %v", e.stage, e.ideaID, e.err)
}

func (e *generationError) Unwrap() error { return e.err }

// runLog is the text stored on a failed run: the backend message as the
// backend raised it, or the error text for any other failure.
func runLog(err error) string {
	var gerr *generationError
	if errors.As(err, &gerr) {
		return gerr.err.Error()
	}
	return err.Error()
}

func (s *Service) processRun(ctx context.Context, run types.Run, sess *secrets.Session) (RunSummary, error) {
	gen, model, err := s.generator(run.Provider, run.Model)
	if err != nil {
		return RunSummary{}, err
	}
	key, err := s.apiKey(ctx, run.Provider, sess)
	if err != nil {
		return RunSummary{}, err
	}

	var assessment string
	var seeds []string
	if run.LiteratureQueryID != nil {
		a, err := s.store.GetLiteratureAssessment(ctx, *run.LiteratureQueryID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return RunSummary{}, err
		}
		assessment = a.Content
		if run.UseAssessmentSeeds {
			seeds = parse.AssessmentSeeds(assessment)
			if len(seeds) == 0 {
				s.logger.Debug("no idea prompts in assessment", "query_id", *run.LiteratureQueryID)
			}
		}
	}

	var summary RunSummary
	for i := 0; i < run.IdeaCount; i++ {
		r := stageRunner{
			gen: gen, model: model, apiKey: key, run: run,
			inputs: prompt.Inputs{TopicFocus: run.TopicFocus, Assessment: assessment},
		}
		if i < len(seeds) {
			r.inputs.Seed = seeds[i]
		}
		passed, err := s.processIdea(ctx, r)
		if err != nil {
			return summary, err
		}
		summary.Ideas++
		if passed {
			summary.Gate1Passed++
			summary.CouncilRounds++
		} else {
			summary.Gate1Failed++
		}
	}
	return summary, nil
}

// processIdea generates one dossier and reports whether it passed Gate 1.
func (s *Service) processIdea(ctx context.Context, r stageRunner) (bool, error) {
	idea, err := s.store.CreateIdea(ctx, r.run.ID)
	if err != nil {
		return false, err
	}
	unlock := s.locks.lock(idea.ID)
	defer unlock()

	log := s.logger.With("run_id", r.run.ID, "idea_id", idea.ID)

	pitch, check, err := s.generatePitch(ctx, r, idea.ID)
	if err != nil {
		return false, err
	}
	if err := s.store.UpdateIdeaHeader(ctx, idea.ID, s.pitchHeader(pitch, idea.ID)); err != nil {
		return false, err
	}
	if _, err := s.store.AddDossierPart(ctx, idea.ID, types.KindPitch, pitch); err != nil {
		return false, err
	}
	if err := s.store.UpsertGate(ctx, idea.ID, types.GateStructure, check.Status, check.Notes); err != nil {
		return false, err
	}
	if err := s.recordMemo(ctx, r.run.ID, idea.ID, roleIdeator, topicPitch,
		wrapMemo(roleIdeator, types.KindPitch.Filename(), pitch)); err != nil {
		return false, err
	}
	if err := s.export(ctx, idea.ID, nil); err != nil {
		return false, err
	}
	s.printf("idea %d: pitch, gate 1 %s\n", idea.ID, check.Status)

	if check.Status != types.GatePassed {
		log.Info("gate 1 failed, skipping remaining sections", "missing", check.Missing)
		return false, nil
	}

	for _, sec := range sections {
		p, err := s.prompts.Build(sec.stage, r.inputs)
		if err != nil {
			return true, err
		}
		content, err := r.generate(ctx, p)
		if err != nil {
			return true, &generationError{stage: string(sec.kind), ideaID: idea.ID, err: err}
		}
		if _, err := s.store.AddDossierPart(ctx, idea.ID, sec.kind, content); err != nil {
			return true, err
		}
		if err := s.recordMemo(ctx, r.run.ID, idea.ID, sec.role, sec.kind.Filename(),
			wrapMemo(sec.role, sec.kind.Filename(), content)); err != nil {
			return true, err
		}
		if err := s.export(ctx, idea.ID, nil); err != nil {
			return true, err
		}
		s.printf("idea %d: %s\n", idea.ID, strings.ToLower(string(sec.kind)))
	}

	for _, g := range []int{types.GateDesign, types.GateData} {
		if err := s.store.UpsertGate(ctx, idea.ID, g, types.GateNeedsRevision, ""); err != nil {
			return true, err
		}
	}

	p, err := s.prompts.Build(prompt.StageCouncil, r.inputs)
	if err != nil {
		return true, err
	}
	content, err := r.generate(ctx, p)
	if err != nil {
		return true, &generationError{stage: "council review", ideaID: idea.ID, err: err}
	}
	round, memos, err := s.recordCouncil(ctx, idea.ID, content)
	if err != nil {
		return true, err
	}
	if err := s.recordMemo(ctx, r.run.ID, idea.ID, roleCouncil, topicCouncil,
		wrapMemo(roleCouncil, "council memos", content)); err != nil {
		return true, err
	}
	result, err := s.scoreRound(ctx, idea.ID, round, memos)
	if err != nil {
		return true, err
	}
	if err := s.export(ctx, idea.ID, memos); err != nil {
		return true, err
	}
	s.printf("idea %d: council round %d, gate 4 %s\n", idea.ID, round.RoundNumber, result.Status)
	return true, nil
}

// generatePitch runs the pitch prompt and up to two corrective retries.
// The last draft is returned with its Gate 1 result whether or not it passed.
func (s *Service) generatePitch(ctx context.Context, r stageRunner, ideaID int64) (string, gate.Structure, error) {
	base, err := s.prompts.Build(prompt.StagePitch, r.inputs)
	if err != nil {
		return "", gate.Structure{}, err
	}
	pitch, err := r.generate(ctx, base)
	if err != nil {
		return "", gate.Structure{}, &generationError{stage: "pitch", ideaID: ideaID, err: err}
	}
	check := gate.CheckStructure(s.schema, pitch)

	for attempt := 1; attempt <= maxGate1Retries && check.Status != types.GatePassed; attempt++ {
		s.logger.Debug("gate 1 retry", "idea_id", ideaID, "attempt", attempt, "missing", check.Missing)
		var retry string
		if attempt == 1 {
			retry = prompt.Gate1RetryWithContext(base, pitch)
		} else if retry, err = s.prompts.Gate1Retry(pitch); err != nil {
			return "", gate.Structure{}, err
		}
		if pitch, err = r.generate(ctx, retry); err != nil {
			return "", gate.Structure{}, &generationError{stage: "pitch retry", ideaID: ideaID, err: err}
		}
		check = gate.CheckStructure(s.schema, pitch)
	}
	return pitch, check, nil
}

// pitchHeader parses the idea header out of a pitch. Missing values are
// logged and stored empty.
func (s *Service) pitchHeader(pitch string, ideaID int64) types.IdeaHeader {
	header := func(key string) func(string) (string, bool) {
		return func(content string) (string, bool) { return parse.HeaderValue(content, key) }
	}
	var h types.IdeaHeader
	fields := []struct {
		name string
		dst  *string
		find func(string) (string, bool)
	}{
		{"title", &h.Title, parse.Title},
		{"big_claim", &h.BigClaim, parse.BigClaim},
		{"LANE_PRIMARY", &h.LanePrimary, header("LANE_PRIMARY")},
		{"LANE_SECONDARY", &h.LaneSecondary, header("LANE_SECONDARY")},
		{"BREAKTHROUGH_TYPE", &h.BreakthroughType, header("BREAKTHROUGH_TYPE")},
	}
	for _, f := range fields {
		v, ok := f.find(pitch)
		if !ok {
			s.logger.Debug("pitch value not found", "idea_id", ideaID, "field", f.name)
		}
		*f.dst = v
	}
	return h
}

// recordCouncil splits council output into referee memos and stores them as
// one new round.
func (s *Service) recordCouncil(ctx context.Context, ideaID int64, content string) (types.CouncilRound, []types.CouncilMemo, error) {
	return s.store.CreateCouncilRound(ctx, ideaID, s.councilMemos(content))
}

// councilMemos splits one council generation into labelled referee memos.
func (s *Service) councilMemos(content string) []types.CouncilMemo {
	m := s.schema.Memo
	texts := parse.SplitMemos(content, m.SeparatorMinHyphens)
	memos := make([]types.CouncilMemo, len(texts))
	for i, text := range texts {
		memos[i] = types.CouncilMemo{
			Referee: parse.RefereeLabel(m.RefereePrefix, m.RefereeLetters, i+1),
			Content: text,
		}
	}
	return memos
}

func (s *Service) scoreCouncil(memos []types.CouncilMemo) gate.Council {
	texts := make([]string, len(memos))
	for i, m := range memos {
		texts[i] = m.Content
	}
	return gate.ScoreCouncil(s.schema, texts)
}

// scoreRound classifies Gate 4 from a round's memos and records the result
// on both the gate and the round.
func (s *Service) scoreRound(ctx context.Context, ideaID int64, round types.CouncilRound, memos []types.CouncilMemo) (gate.Council, error) {
	result := s.scoreCouncil(memos)
	if err := s.store.UpsertGate(ctx, ideaID, types.GateCouncil, result.Status, result.Notes); err != nil {
		return result, err
	}
	if err := s.store.UpdateRoundOutcome(ctx, round.ID, result.Status, result.Notes); err != nil {
		return result, err
	}
	s.logger.Debug("gate 4 scored", "idea_id", ideaID, "round", round.RoundNumber, "status", result.Status)
	return result, nil
}
