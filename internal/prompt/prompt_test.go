// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-council/internal/gate"
	"github.com/pdiddy/research-council/internal/schema"
	"github.com/pdiddy/research-council/pkg/types"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(schema.Default(), ModeIdeation)
	require.NoError(t, err)
	return b
}

func TestNewBuilder_UnknownMode(t *testing.T) {
	_, err := NewBuilder(schema.Default(), "manuscript")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestNewBuilder_DefaultMode(t *testing.T) {
	b, err := NewBuilder(schema.Default(), "")
	require.NoError(t, err)
	assert.Equal(t, ModeIdeation, b.Mode())
}

func TestBuild_UnknownStage(t *testing.T) {
	_, err := newBuilder(t).Build(Stage("abstract"), Inputs{})
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestBuild_Layout(t *testing.T) {
	got, err := newBuilder(t).Build(StageDesign, Inputs{
		TopicFocus: "sanctions",
		Assessment: "  Debates are stuck.  ",
		Seed:       "Swap lines as statecraft",
	})
	require.NoError(t, err)

	sections := strings.Split(got, "\n\n")
	require.GreaterOrEqual(t, len(sections), 3)
	assert.Equal(t, baseContext, sections[0])
	assert.Equal(t, laneCatalog, sections[1])
	assert.True(t, strings.HasPrefix(sections[2],
		"Literature assessment:\nDebates are stuck.\nTopic focus: sanctions\nIdea seed: Swap lines as statecraft\nProduce DESIGN.md"))
}

func TestBuild_NoOptionalInputs(t *testing.T) {
	got, err := newBuilder(t).Build(StageNextSteps, Inputs{})
	require.NoError(t, err)

	assert.NotContains(t, got, "Topic focus")
	assert.NotContains(t, got, "Literature assessment")
	assert.NotContains(t, got, "Idea seed")
	assert.True(t, strings.HasSuffix(got, "Fast falsification plan (how to kill quickly if wrong)"))
}

func TestBuild_Deterministic(t *testing.T) {
	b := newBuilder(t)
	in := Inputs{TopicFocus: "energy"}
	for _, stage := range []Stage{StagePitch, StageDesign, StageDataPlan, StagePositioning, StageNextSteps, StageCouncil} {
		first, err := b.Build(stage, in)
		require.NoError(t, err)
		second, err := b.Build(stage, in)
		require.NoError(t, err)
		assert.Equal(t, first, second, stage)
	}
}

func TestBuild_PitchHeaderBlockSatisfiesGate1(t *testing.T) {
	got, err := newBuilder(t).Build(StagePitch, Inputs{})
	require.NoError(t, err)

	assert.Contains(t, got, "\nLANE_PRIMARY: <one lane from catalog>\nLANE_SECONDARY: <optional; up to two>\nBREAKTHROUGH_TYPE:")
	// A model that echoes the header block verbatim passes the validator.
	assert.Equal(t, types.GatePassed, gate.CheckStructure(schema.Default(), got).Status)
}

func TestBuild_CouncilRendersSchema(t *testing.T) {
	got, err := newBuilder(t).Build(StageCouncil, Inputs{})
	require.NoError(t, err)

	assert.Contains(t, got, "Produce 5 council memos (Referee A-E)")
	assert.Contains(t, got, `separated by "---" lines`)
	assert.Contains(t, got, `label each as "Referee A" etc.`)
	for _, th := range schema.Default().Scores.Thresholds {
		assert.Contains(t, got, "- "+th.Rubric+"\n")
	}
}

func TestCouncilWithDossier(t *testing.T) {
	parts := map[types.DossierKind]string{
		types.KindNextSteps: "steps",
		types.KindPitch:     "  pitch text \n",
		types.KindDesign:    "   ",
	}
	got, err := newBuilder(t).CouncilWithDossier(parts, "trade")
	require.NoError(t, err)

	assert.Contains(t, got, "Topic focus: trade\n")
	assert.True(t, strings.HasSuffix(got,
		"Review the dossier below. Ground critiques in the specific design and claims provided.\n\n## PITCH\npitch text\n\n## NEXT_STEPS\nsteps"))
	assert.NotContains(t, got, "## DESIGN")
}

func TestCouncilWithDossier_Empty(t *testing.T) {
	got, err := newBuilder(t).CouncilWithDossier(nil, "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, "\n\nNo dossier content available."))
}

func TestGate1RetryWithContext(t *testing.T) {
	got := Gate1RetryWithContext("original prompt\n", "  bad draft ")
	assert.Equal(t, "original prompt\n\n"+
		"CRITICAL FIX: Your last output missed required header fields.\n\n"+
		"The header block must be the first lines of the output.\n\n"+
		"Return only the corrected PITCH.md content.\n\n"+
		"\n\n"+
		"Previous draft:\n\n"+
		"bad draft", got)
}

func TestGate1Retry_NoOriginalContext(t *testing.T) {
	got, err := newBuilder(t).Gate1Retry("draft body\n")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "The draft below is missing required header fields."))
	assert.Contains(t, got, "WHY_THIS_IS_BREAKTHROUGH: <5-10 lines, starting on this line>\n")
	assert.True(t, strings.HasSuffix(got, "Draft to fix:\n\ndraft body"))
	assert.NotContains(t, got, baseContext)
	assert.NotContains(t, got, "Lane catalog")
}

func TestModes(t *testing.T) {
	assert.Equal(t, []string{ModeIdeation}, Modes())
}
