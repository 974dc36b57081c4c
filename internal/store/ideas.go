// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/pdiddy/research-council/pkg/types"
)

const ideaColumns = `id, run_id, title, lane_primary, lane_secondary, breakthrough_type, big_claim,
	status, created_at, updated_at`

// CreateIdea inserts an empty drafted idea under runID.
func (s *Store) CreateIdea(ctx context.Context, runID int64) (types.Idea, error) {
	t, ts := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ideas (run_id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		runID, types.IdeaDrafted, ts, ts,
	)
	if err != nil {
		return types.Idea{}, fmt.Errorf("inserting idea for run %d: %w", runID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Idea{}, fmt.Errorf("reading idea id: %w", err)
	}
	return types.Idea{ID: id, RunID: runID, CreatedAt: t, UpdatedAt: t}, nil
}

// GetIdea returns the idea with id.
func (s *Store) GetIdea(ctx context.Context, id int64) (types.Idea, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id = ?`, id)
	idea, err := scanIdea(row)
	if err != nil {
		return types.Idea{}, notFound(err, "idea", id)
	}
	return idea, nil
}

// ListIdeas returns ideas newest first. A runID of zero lists every run.
func (s *Store) ListIdeas(ctx context.Context, runID int64) ([]types.Idea, error) {
	query := `SELECT ` + ideaColumns + ` FROM ideas`
	var args []any
	if runID != 0 {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ideas: %w", err)
	}
	defer rows.Close()

	var ideas []types.Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

// UpdateIdeaHeader overwrites the parsed pitch fields of an idea. Empty
// values clear the stored field.
func (s *Store) UpdateIdeaHeader(ctx context.Context, id int64, h types.IdeaHeader) error {
	_, ts := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE ideas SET title = ?, big_claim = ?, lane_primary = ?, lane_secondary = ?,
			breakthrough_type = ?, updated_at = ?
		 WHERE id = ?`,
		h.Title, h.BigClaim, h.LanePrimary, h.LaneSecondary, h.BreakthroughType, ts, id,
	)
	if err != nil {
		return fmt.Errorf("updating idea %d header: %w", id, err)
	}
	return requireRow(res, "idea", id)
}

// SetIdeaStatus overwrites the free-text status of an idea.
func (s *Store) SetIdeaStatus(ctx context.Context, id int64, status string) error {
	_, ts := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE ideas SET status = ?, updated_at = ? WHERE id = ?`, status, ts, id)
	if err != nil {
		return fmt.Errorf("updating idea %d status: %w", id, err)
	}
	return requireRow(res, "idea", id)
}

// AddDossierPart records a generated section.
func (s *Store) AddDossierPart(ctx context.Context, ideaID int64, kind types.DossierKind, content string) (types.DossierPart, error) {
	if !kind.Valid() {
		return types.DossierPart{}, fmt.Errorf("unknown dossier kind %q", kind)
	}
	t, ts := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO dossier_parts (idea_id, kind, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		ideaID, string(kind), content, ts, ts,
	)
	if err != nil {
		return types.DossierPart{}, fmt.Errorf("inserting %s for idea %d: %w", kind, ideaID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.DossierPart{}, fmt.Errorf("reading dossier part id: %w", err)
	}
	return types.DossierPart{ID: id, IdeaID: ideaID, Kind: kind, Content: content, CreatedAt: t, UpdatedAt: t}, nil
}

// ListDossierParts returns every stored part of an idea in insertion order.
func (s *Store) ListDossierParts(ctx context.Context, ideaID int64) ([]types.DossierPart, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, idea_id, kind, content, created_at, updated_at
		 FROM dossier_parts WHERE idea_id = ? ORDER BY id`, ideaID)
	if err != nil {
		return nil, fmt.Errorf("listing dossier parts for idea %d: %w", ideaID, err)
	}
	defer rows.Close()

	var parts []types.DossierPart
	for rows.Next() {
		var (
			p                types.DossierPart
			kind             string
			created, updated string
		)
		if err := rows.Scan(&p.ID, &p.IdeaID, &kind, &p.Content, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning dossier part: %w", err)
		}
		p.Kind = types.DossierKind(kind)
		p.CreatedAt = parseTime(created)
		p.UpdatedAt = parseTime(updated)
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// LatestDossierParts returns the latest part per kind in section order.
func (s *Store) LatestDossierParts(ctx context.Context, ideaID int64) ([]types.DossierPart, error) {
	parts, err := s.ListDossierParts(ctx, ideaID)
	if err != nil {
		return nil, err
	}
	latest := types.LatestPerKind(parts)
	sort.SliceStable(latest, func(i, j int) bool {
		return kindRank(latest[i].Kind) < kindRank(latest[j].Kind)
	})
	return latest, nil
}

func kindRank(k types.DossierKind) int {
	for i, known := range types.DossierKinds {
		if k == known {
			return i
		}
	}
	return len(types.DossierKinds)
}

func scanIdea(sc scanner) (types.Idea, error) {
	var (
		idea             types.Idea
		created, updated string
	)
	err := sc.Scan(&idea.ID, &idea.RunID, &idea.Title, &idea.LanePrimary, &idea.LaneSecondary,
		&idea.BreakthroughType, &idea.BigClaim, &idea.Status, &created, &updated)
	if err != nil {
		return types.Idea{}, err
	}
	idea.CreatedAt = parseTime(created)
	idea.UpdatedAt = parseTime(updated)
	return idea, nil
}
