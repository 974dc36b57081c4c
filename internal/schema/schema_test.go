// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()

	assert.Equal(t, "council-v1", s.Version)
	assert.Equal(t, "---", s.Memo.Separator())
	assert.Equal(t, 5, s.Memo.RefereeLetters)
	assert.Equal(t, []string{"LANE_PRIMARY", "BREAKTHROUGH_TYPE", "WHY_THIS_IS_BREAKTHROUGH"}, s.Pitch.RequiredHeaders())
	assert.Equal(t, "LANE_SECONDARY", s.Pitch.Headers[1].Key)
	assert.False(t, s.Pitch.Headers[1].Required)
	assert.Equal(t,
		[]string{"novelty", "stakes", "design", "data", "interpretability", "lane_fit", "breakthrough"},
		s.Scores.Categories())
	assert.Equal(t, "novelty/agenda-setting", s.Scores.Labels[0].Match)
	assert.Equal(t, "required revisions", s.Revisions.Start)
}

func TestDefault_Thresholds(t *testing.T) {
	want := map[string]float64{
		"novelty": 8, "stakes": 7, "design": 8, "data": 6,
		"interpretability": 7, "lane_fit": 7, "breakthrough": 8,
	}
	for _, th := range Default().Scores.Thresholds {
		assert.Equal(t, want[th.Category], th.Min, th.Category)
		assert.NotEmpty(t, th.Rubric)
	}
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "council-v1", s.Version)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "council.yaml")
	doc := `version: test-v2
memo:
  separator_min_hyphens: 5
  referee_letters: 3
  referee_prefix: Reviewer
pitch:
  headers:
    - key: LANE_PRIMARY
      required: true
scores:
  labels:
    - match: rigor
      category: rigor
  thresholds:
    - category: rigor
      rubric: Rigor
      min: 5
verdict:
  prefix: verdict
  reject: reject
  revise: revise
revisions:
  start: required revisions
  section_headers: [scores]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "-----", s.Memo.Separator())
	assert.Equal(t, []string{"rigor"}, s.Scores.Categories())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Schema)
	}{
		{"no version", func(s *Schema) { s.Version = "" }},
		{"zero separator", func(s *Schema) { s.Memo.SeparatorMinHyphens = 0 }},
		{"no prefix", func(s *Schema) { s.Memo.RefereePrefix = "" }},
		{"too many letters", func(s *Schema) { s.Memo.RefereeLetters = 27 }},
		{"no required headers", func(s *Schema) { s.Pitch.Headers = s.Pitch.Headers[1:2] }},
		{"empty header key", func(s *Schema) { s.Pitch.Headers = append(s.Pitch.Headers, Header{}) }},
		{"no thresholds", func(s *Schema) { s.Scores.Thresholds = nil }},
		{"unknown category", func(s *Schema) {
			s.Scores.Labels = append(s.Scores.Labels, ScoreLabel{Match: "x", Category: "ghost"})
		}},
		{"duplicate threshold", func(s *Schema) {
			s.Scores.Thresholds = append(s.Scores.Thresholds, s.Scores.Thresholds[0])
		}},
		{"no verdict prefix", func(s *Schema) { s.Verdict.Prefix = "" }},
		{"no revisions start", func(s *Schema) { s.Revisions.Start = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}
