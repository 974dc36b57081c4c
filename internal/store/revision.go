// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"

	"github.com/pdiddy/research-council/pkg/types"
)

// Revision is one atomic update of an idea after council review.
type Revision struct {
	IdeaID int64

	// Parts carries the rewritten content keyed by part ID. Updated parts
	// get a fresh updated_at.
	Parts []types.DossierPart

	// Status, when non-empty, replaces the idea status.
	Status string

	// Gates are upserted in order.
	Gates []types.GateResult

	// Memo, when set, is appended to the agent memo log.
	Memo *types.AgentMemo

	// Round, when set, opens the next council round after the gates are
	// written.
	Round *RoundDraft
}

// RevisionResult reports what ApplyRevision wrote.
type RevisionResult struct {
	Parts      []types.DossierPart
	Memo       *types.AgentMemo
	Round      *types.CouncilRound
	RoundMemos []types.CouncilMemo
}

// ApplyRevision writes rev in a single transaction: either every part,
// status, gate, memo and round lands or none do.
func (s *Store) ApplyRevision(ctx context.Context, rev Revision) (RevisionResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RevisionResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	t, ts := s.stamp()
	var out RevisionResult

	for _, p := range rev.Parts {
		res, err := tx.ExecContext(ctx,
			`UPDATE dossier_parts SET content = ?, updated_at = ? WHERE id = ? AND idea_id = ?`,
			p.Content, ts, p.ID, rev.IdeaID)
		if err != nil {
			return RevisionResult{}, fmt.Errorf("updating dossier part %d: %w", p.ID, err)
		}
		if err := requireRow(res, "dossier part", p.ID); err != nil {
			return RevisionResult{}, err
		}
		p.IdeaID = rev.IdeaID
		p.UpdatedAt = t
		out.Parts = append(out.Parts, p)
	}

	if rev.Status != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE ideas SET status = ?, updated_at = ? WHERE id = ?`, rev.Status, ts, rev.IdeaID)
		if err != nil {
			return RevisionResult{}, fmt.Errorf("updating idea %d status: %w", rev.IdeaID, err)
		}
		if err := requireRow(res, "idea", rev.IdeaID); err != nil {
			return RevisionResult{}, err
		}
	}

	for _, g := range rev.Gates {
		g.IdeaID = rev.IdeaID
		if err := upsertGate(ctx, tx, ts, g); err != nil {
			return RevisionResult{}, err
		}
	}

	if rev.Memo != nil {
		m, err := insertAgentMemo(ctx, tx, ts, *rev.Memo)
		if err != nil {
			return RevisionResult{}, err
		}
		out.Memo = &m
	}

	if rev.Round != nil {
		round, memos, err := s.insertCouncilRound(ctx, tx, rev.IdeaID, *rev.Round)
		if err != nil {
			return RevisionResult{}, err
		}
		out.Round = &round
		out.RoundMemos = memos
	}

	if err := tx.Commit(); err != nil {
		return RevisionResult{}, fmt.Errorf("committing revision for idea %d: %w", rev.IdeaID, err)
	}
	return out, nil
}
