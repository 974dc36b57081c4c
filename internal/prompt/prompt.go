// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt assembles the deterministic prompt text for every stage of
// the dossier pipeline and for the council review. Templates that mention
// the header block, rubric or memo separator render from the council schema.
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/research-council/internal/parse"
	"github.com/pdiddy/research-council/internal/schema"
	"github.com/pdiddy/research-council/pkg/types"
)

// Stage names one prompt in a prompt set.
type Stage string

const (
	StagePitch       Stage = "pitch"
	StageDesign      Stage = "design"
	StageDataPlan    Stage = "data"
	StagePositioning Stage = "positioning"
	StageNextSteps   Stage = "next_steps"
	StageCouncil     Stage = "council"
)

// ModeIdeation is the only prompt set shipped today.
const ModeIdeation = "ideation"

// ErrUnknownMode is returned for a prompt mode with no registered set.
var ErrUnknownMode = errors.New("unknown prompt mode")

// ErrUnknownStage is returned for a stage the prompt set does not define.
var ErrUnknownStage = errors.New("unknown prompt stage")

// promptSet is the per-mode context and stage templates.
type promptSet struct {
	context string
	lanes   string
	stages  map[Stage]*template.Template
}

var modes = map[string]promptSet{
	ModeIdeation: {
		context: baseContext,
		lanes:   laneCatalog,
		stages: map[Stage]*template.Template{
			StagePitch:       pitchTmpl,
			StageDesign:      designTmpl,
			StageDataPlan:    dataPlanTmpl,
			StagePositioning: positioningTmpl,
			StageNextSteps:   nextStepsTmpl,
			StageCouncil:     councilTmpl,
		},
	},
}

// Modes returns the registered prompt modes.
func Modes() []string {
	return []string{ModeIdeation}
}

// Inputs are the optional per-idea values injected into a stage prompt.
type Inputs struct {
	TopicFocus string
	Assessment string
	Seed       string
}

// Builder renders prompts for one mode against one council schema.
type Builder struct {
	schema *schema.Schema
	mode   string
	set    promptSet
}

// NewBuilder returns a Builder for mode, or ErrUnknownMode.
func NewBuilder(s *schema.Schema, mode string) (*Builder, error) {
	if mode == "" {
		mode = ModeIdeation
	}
	set, ok := modes[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	return &Builder{schema: s, mode: mode, set: set}, nil
}

// Mode returns the prompt set name.
func (b *Builder) Mode() string {
	return b.mode
}

// templateData is what stage templates see.
type templateData struct {
	Schema       *schema.Schema
	Referees     int
	RefereeRange string
	FirstReferee string
	Separator    string
	Draft        string
}

func (b *Builder) data() templateData {
	m := b.schema.Memo
	n := m.RefereeLetters
	if n < 1 {
		n = 1
	}
	first := parse.RefereeLabel(m.RefereePrefix, m.RefereeLetters, 1)
	last := parse.RefereeLabel(m.RefereePrefix, m.RefereeLetters, n)
	rng := first
	if n > 1 {
		rng = first + "-" + strings.TrimPrefix(last, m.RefereePrefix+" ")
	}
	return templateData{
		Schema:       b.schema,
		Referees:     n,
		RefereeRange: rng,
		FirstReferee: first,
		Separator:    m.Separator(),
	}
}

// Build returns the prompt for stage: base context, lane catalog, then the
// assessment, topic focus and seed lines ahead of the stage template.
func (b *Builder) Build(stage Stage, in Inputs) (string, error) {
	tmpl, ok := b.set.stages[stage]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	body, err := render(tmpl, b.data())
	if err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", stage, err)
	}

	var lead strings.Builder
	if a := strings.TrimSpace(in.Assessment); a != "" {
		fmt.Fprintf(&lead, "Literature assessment:\n%s\n", a)
	}
	if in.TopicFocus != "" {
		fmt.Fprintf(&lead, "Topic focus: %s\n", in.TopicFocus)
	}
	if in.Seed != "" {
		fmt.Fprintf(&lead, "Idea seed: %s\n", in.Seed)
	}

	return strings.Join([]string{b.set.context, b.set.lanes, lead.String() + body}, "\n\n"), nil
}

// CouncilWithDossier returns the council prompt followed by the dossier
// sections present in parts, in dossier order.
func (b *Builder) CouncilWithDossier(parts map[types.DossierKind]string, topicFocus string) (string, error) {
	base, err := b.Build(StageCouncil, Inputs{TopicFocus: topicFocus})
	if err != nil {
		return "", err
	}
	var blocks []string
	for _, kind := range types.DossierKinds {
		content := strings.TrimSpace(parts[kind])
		if content == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("## %s\n%s", kind, content))
	}
	dossier := "No dossier content available."
	if len(blocks) > 0 {
		dossier = strings.Join(blocks, "\n\n")
	}
	return strings.Join([]string{
		base,
		"Review the dossier below. Ground critiques in the specific design and claims provided.",
		dossier,
	}, "\n\n"), nil
}

// Gate1RetryWithContext is the first corrective prompt: the original pitch
// prompt plus an instruction block quoting the failed draft.
func Gate1RetryWithContext(original, draft string) string {
	return strings.Join([]string{
		strings.TrimSpace(original),
		"CRITICAL FIX: Your last output missed required header fields.",
		"The header block must be the first lines of the output.",
		"Return only the corrected PITCH.md content.",
		"",
		"Previous draft:",
		strings.TrimSpace(draft),
	}, "\n\n")
}

// Gate1Retry is the second corrective prompt. It carries no original
// context and asks only for a corrected pitch.
func (b *Builder) Gate1Retry(draft string) (string, error) {
	d := b.data()
	d.Draft = strings.TrimSpace(draft)
	out, err := render(gate1RetryTmpl, d)
	if err != nil {
		return "", fmt.Errorf("rendering gate 1 retry prompt: %w", err)
	}
	return out, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
