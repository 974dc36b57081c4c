// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-council/pkg/types"
)

// IdeaReport is the full state of one idea for export.
type IdeaReport struct {
	Idea   types.Idea          `json:"idea" yaml:"idea"`
	Gates  []types.GateResult  `json:"gates" yaml:"gates"`
	Parts  []types.DossierPart `json:"parts" yaml:"parts"`
	Rounds []RoundReport       `json:"rounds" yaml:"rounds"`

	// Memos without a round.
	Unrounded []types.CouncilMemo `json:"unrounded_memos,omitempty" yaml:"unrounded_memos,omitempty"`
}

// RoundReport is a council round with its memos.
type RoundReport struct {
	types.CouncilRound `yaml:",inline"`
	Memos              []types.CouncilMemo `json:"memos" yaml:"memos"`
}

// IdeaReport collects an idea with its gates, latest parts and every round,
// newest round first.
func (s *Store) IdeaReport(ctx context.Context, ideaID int64) (IdeaReport, error) {
	idea, err := s.GetIdea(ctx, ideaID)
	if err != nil {
		return IdeaReport{}, err
	}
	gates, err := s.ListGates(ctx, ideaID)
	if err != nil {
		return IdeaReport{}, err
	}
	parts, err := s.LatestDossierParts(ctx, ideaID)
	if err != nil {
		return IdeaReport{}, err
	}
	rounds, err := s.ListCouncilRounds(ctx, ideaID)
	if err != nil {
		return IdeaReport{}, err
	}
	memos, err := s.ListCouncilMemos(ctx, ideaID)
	if err != nil {
		return IdeaReport{}, err
	}

	byRound := make(map[int64][]types.CouncilMemo)
	report := IdeaReport{Idea: idea, Gates: gates, Parts: parts}
	for _, m := range memos {
		if m.RoundID == nil {
			report.Unrounded = append(report.Unrounded, m)
			continue
		}
		byRound[*m.RoundID] = append(byRound[*m.RoundID], m)
	}
	for _, r := range rounds {
		report.Rounds = append(report.Rounds, RoundReport{CouncilRound: r, Memos: byRound[r.ID]})
	}
	return report, nil
}

// WriteReportYAML encodes r as YAML.
func WriteReportYAML(w io.Writer, r IdeaReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// WriteReportJSON encodes r as indented JSON.
func WriteReportJSON(w io.Writer, r IdeaReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

// ExportReport writes the report of one idea to path. A .json extension
// selects JSON; anything else is YAML.
func (s *Store) ExportReport(ctx context.Context, ideaID int64, path string) error {
	report, err := s.IdeaReport(ctx, ideaID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = WriteReportJSON(f, report)
	} else {
		err = WriteReportYAML(f, report)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
