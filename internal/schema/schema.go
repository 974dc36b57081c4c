// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema holds the versioned council contract: the memo separator,
// referee labelling, required pitch headers, score label table, thresholds
// and revision section headers. Prompt templates render from it and the
// parsers read from it, so both sides change together.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

//go:embed council-v1.yaml
var defaultSchema []byte

// Schema is the parsed council contract.
type Schema struct {
	Version   string    `json:"version" yaml:"version"`
	Memo      Memo      `json:"memo" yaml:"memo"`
	Pitch     Pitch     `json:"pitch" yaml:"pitch"`
	Scores    Scores    `json:"scores" yaml:"scores"`
	Verdict   Verdict   `json:"verdict" yaml:"verdict"`
	Revisions Revisions `json:"revisions" yaml:"revisions"`
}

// Memo controls how council output is split and labelled.
type Memo struct {
	SeparatorMinHyphens int    `json:"separator_min_hyphens" yaml:"separator_min_hyphens"`
	RefereeLetters      int    `json:"referee_letters" yaml:"referee_letters"`
	RefereePrefix       string `json:"referee_prefix" yaml:"referee_prefix"`
}

// Separator returns the shortest separator line, used in prompts.
func (m Memo) Separator() string {
	return strings.Repeat("-", m.SeparatorMinHyphens)
}

// Header is one "KEY: value" line of the pitch header block.
type Header struct {
	Key      string `json:"key" yaml:"key"`
	Hint     string `json:"hint" yaml:"hint"`
	Required bool   `json:"required" yaml:"required"`
}

// Pitch lists the header block parsed out of a pitch.
type Pitch struct {
	Headers []Header `json:"headers" yaml:"headers"`
}

// RequiredHeaders returns the keys Gate 1 checks, in block order.
func (p Pitch) RequiredHeaders() []string {
	var keys []string
	for _, h := range p.Headers {
		if h.Required {
			keys = append(keys, h.Key)
		}
	}
	return keys
}

// ScoreLabel maps a substring found on a memo line to a score category.
type ScoreLabel struct {
	Match    string `json:"match" yaml:"match"`
	Category string `json:"category" yaml:"category"`
}

// Threshold is the minimum mean score for one category.
type Threshold struct {
	Category string  `json:"category" yaml:"category"`
	Rubric   string  `json:"rubric" yaml:"rubric"`
	Min      float64 `json:"min" yaml:"min"`
}

// Scores holds the ordered label table and the ordered thresholds.
type Scores struct {
	Labels     []ScoreLabel `json:"labels" yaml:"labels"`
	Thresholds []Threshold  `json:"thresholds" yaml:"thresholds"`
}

// Categories returns the threshold categories in reporting order.
func (s Scores) Categories() []string {
	out := make([]string, len(s.Thresholds))
	for i, t := range s.Thresholds {
		out[i] = t.Category
	}
	return out
}

// Verdict holds the verdict line prefix and the keywords that drive Gate 4.
type Verdict struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	Reject string `json:"reject" yaml:"reject"`
	Revise string `json:"revise" yaml:"revise"`
}

// Revisions locates the required-revisions list inside a memo.
type Revisions struct {
	Start          string   `json:"start" yaml:"start"`
	SectionHeaders []string `json:"section_headers" yaml:"section_headers"`
}

// Default returns the embedded council-v1 schema.
func Default() *Schema {
	s, err := Parse(defaultSchema)
	if err != nil {
		panic(fmt.Sprintf("embedded council schema: %v", err))
	}
	return s
}

// Load reads a schema from path. An empty path returns Default.
func Load(path string) (*Schema, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading council schema %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("council schema %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that the label table and thresholds are consistent.
func (s *Schema) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("missing version")
	}
	if s.Memo.SeparatorMinHyphens < 1 {
		return fmt.Errorf("memo.separator_min_hyphens must be at least 1")
	}
	if s.Memo.RefereePrefix == "" {
		return fmt.Errorf("memo.referee_prefix is required")
	}
	if s.Memo.RefereeLetters < 0 || s.Memo.RefereeLetters > 26 {
		return fmt.Errorf("memo.referee_letters must be between 0 and 26")
	}
	if len(s.Pitch.RequiredHeaders()) == 0 {
		return fmt.Errorf("pitch.headers has no required key")
	}
	for _, h := range s.Pitch.Headers {
		if h.Key == "" {
			return fmt.Errorf("pitch header with empty key")
		}
	}
	if len(s.Scores.Thresholds) == 0 {
		return fmt.Errorf("scores.thresholds is empty")
	}
	known := make(map[string]bool, len(s.Scores.Thresholds))
	for _, t := range s.Scores.Thresholds {
		if t.Category == "" {
			return fmt.Errorf("threshold with empty category")
		}
		if known[t.Category] {
			return fmt.Errorf("duplicate threshold for %q", t.Category)
		}
		known[t.Category] = true
	}
	for _, l := range s.Scores.Labels {
		if strings.TrimSpace(l.Match) == "" {
			return fmt.Errorf("score label with empty match")
		}
		if !known[l.Category] {
			return fmt.Errorf("score label %q maps to unknown category %q", l.Match, l.Category)
		}
	}
	if s.Verdict.Prefix == "" {
		return fmt.Errorf("verdict.prefix is required")
	}
	if s.Revisions.Start == "" {
		return fmt.Errorf("revisions.start is required")
	}
	return nil
}
