// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const samplePitch = `LANE_PRIMARY: Sanctions
BREAKTHROUGH_TYPE: Mechanism
WHY_THIS_IS_BREAKTHROUGH: because X
Working title: Foo
One-sentence big claim: Sanctions reroute trade through hubs.`

func TestHeaderValue(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
		want    string
		wantOK  bool
	}{
		{"present", samplePitch, "LANE_PRIMARY", "Sanctions", true},
		{"spaces around colon", "BREAKTHROUGH_TYPE  :  Measurement ", "BREAKTHROUGH_TYPE", "Measurement", true},
		{"absent", samplePitch, "LANE_SECONDARY", "", false},
		{"case sensitive", "lane_primary: x", "LANE_PRIMARY", "", false},
		{"must start line", "- LANE_PRIMARY: x", "LANE_PRIMARY", "", false},
		{"blank value", "LANE_PRIMARY:   \nBREAKTHROUGH_TYPE: y", "LANE_PRIMARY", "", false},
		{"crlf", "LANE_PRIMARY: Trade\r\n", "LANE_PRIMARY", "Trade", true},
		{"first wins", "LANE_PRIMARY: a\nLANE_PRIMARY: b", "LANE_PRIMARY", "a", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := HeaderValue(tt.content, tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTitleAndBigClaim(t *testing.T) {
	title, ok := Title(samplePitch)
	assert.True(t, ok)
	assert.Equal(t, "Foo", title)

	claim, ok := BigClaim(samplePitch)
	assert.True(t, ok)
	assert.Equal(t, "Sanctions reroute trade through hubs.", claim)

	title, ok = Title("working TITLE Bar Baz")
	assert.True(t, ok)
	assert.Equal(t, "Bar Baz", title)

	_, ok = Title("no title here")
	assert.False(t, ok)
	_, ok = BigClaim("")
	assert.False(t, ok)
}

func TestSplitMemos(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"three memos", "Referee A\nok\n---\nReferee B\nfine\n-----\nReferee C", []string{"Referee A\nok", "Referee B\nfine", "Referee C"}},
		{"separator with spaces", "one\n  ---  \ntwo", []string{"one", "two"}},
		{"two hyphens do not split", "one\n--\ntwo", []string{"one\n--\ntwo"}},
		{"inline hyphens do not split", "a --- b", []string{"a --- b"}},
		{"empty parts dropped", "---\n\nfirst\n---\n---\nsecond\n---", []string{"first", "second"}},
		{"no separator", "  whole memo  ", []string{"whole memo"}},
		{"only separators", "---\n---", []string{"---\n---"}},
		{"empty", "", []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitMemos(tt.content, 3))
		})
	}
}

func TestRefereeLabel(t *testing.T) {
	assert.Equal(t, "Referee A", RefereeLabel("Referee", 5, 1))
	assert.Equal(t, "Referee E", RefereeLabel("Referee", 5, 5))
	assert.Equal(t, "Referee 6", RefereeLabel("Referee", 5, 6))
	assert.Equal(t, "Referee 12", RefereeLabel("Referee", 5, 12))
}

func TestScore(t *testing.T) {
	tests := []struct {
		line   string
		want   float64
		wantOK bool
	}{
		{"Novelty: 9/10", 9, true},
		{"Design credibility: 7.5 / 10", 7.5, true},
		{"Lane fit (1-10): 8", 1, true},
		{"Data feasibility: score 6", 6, true},
		{"Interpretability 3 of 5, overall 8/10", 8, true},
		{"Stakes: high", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := Score(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

var testLabels = []Label{
	{Match: "novelty/agenda-setting", Category: "novelty"},
	{Match: "novelty", Category: "novelty"},
	{Match: "theoretical stakes clarity", Category: "stakes"},
	{Match: "stakes", Category: "stakes"},
	{Match: "lane fit", Category: "lane_fit"},
}

func TestScores_FirstLabelWins(t *testing.T) {
	memo := "Novelty/agenda-setting: 9/10\nTheoretical stakes clarity: 7/10\nLANE FIT: 8"
	got := Scores(memo, testLabels)

	assert.Equal(t, []float64{9}, got["novelty"])
	assert.Equal(t, []float64{7}, got["stakes"])
	assert.Equal(t, []float64{8}, got["lane_fit"])
}

func TestScores_LineClaimedWithoutNumber(t *testing.T) {
	memo := "Novelty and stakes: unclear\nStakes: 8/10"
	got := Scores(memo, testLabels)

	assert.Empty(t, got["novelty"])
	assert.Equal(t, []float64{8}, got["stakes"])
}

func TestVerdicts(t *testing.T) {
	memo := "Verdict: Accept\nverdict : Revise and resubmit\n- **Verdict:** Reject\nThe verdict: ignored\nVerdict pending"
	assert.Equal(t, []string{"accept", "revise and resubmit", "reject", ""}, Verdicts(memo, "verdict"))
	assert.Empty(t, Verdicts("no decision", "verdict"))
}

var testHeaders = []string{"scores", "verdict", "strengths", "fatal flaws", "required revisions"}

func TestRequiredRevisions(t *testing.T) {
	tests := []struct {
		name string
		memo string
		want []string
	}{
		{
			"bullets",
			"Verdict: revise\nRequired revisions:\n- tighten estimand\n- expand falsification\nScores:\nNovelty: 8/10",
			[]string{"tighten estimand", "expand falsification"},
		},
		{
			"numbered and continuation",
			"Required Revisions (ranked)\n1) clarify the unit\n   of analysis\n2. add placebo\n\n* drop lane 4\nStrengths: many",
			[]string{"clarify the unit of analysis", "add placebo", "drop lane 4"},
		},
		{
			"markdown heading stops",
			"## Required revisions\n- one\n## Scores\n- novelty 9",
			[]string{"one"},
		},
		{
			"prose before first item is skipped",
			"Required revisions\nsee below\n- only item",
			[]string{"only item"},
		},
		{"no section", "Verdict: accept", nil},
		{"section at end", "Required revisions", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredRevisions(tt.memo, "required revisions", testHeaders))
		})
	}
}

func TestAssessmentSeeds(t *testing.T) {
	assessment := `## Core debates
- stuck on measurement

## Concrete idea prompts
1. Sanctions hubs and rerouting
   through third countries
2) Swap lines as statecraft
- Chip export controls

Trailing paragraph that is not a seed.`

	assert.Equal(t, []string{
		"Sanctions hubs and rerouting through third countries",
		"Swap lines as statecraft",
		"Chip export controls",
	}, AssessmentSeeds(assessment))
}

func TestAssessmentSeeds_StopsAtHeading(t *testing.T) {
	assessment := "3-5 idea prompts:\n\n- first\n## Next\n- not a seed"
	assert.Equal(t, []string{"first"}, AssessmentSeeds(assessment))
}

func TestAssessmentSeeds_None(t *testing.T) {
	assert.Nil(t, AssessmentSeeds(""))
	assert.Nil(t, AssessmentSeeds("no prompts here\n- item"))
}
