// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/research-council/pkg/types"
)

// ErrInvalidGate rejects a gate number or status outside the known set.
var ErrInvalidGate = errors.New("invalid gate")

// CreateCouncilRound opens the next round for an idea (max + 1, or 1) and
// attaches every memo to it in one transaction. Only Referee and Content
// are read from memos.
func (s *Store) CreateCouncilRound(ctx context.Context, ideaID int64, memos []types.CouncilMemo) (types.CouncilRound, []types.CouncilMemo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.CouncilRound{}, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	round, stored, err := s.insertCouncilRound(ctx, tx, ideaID, RoundDraft{Memos: memos})
	if err != nil {
		return types.CouncilRound{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return types.CouncilRound{}, nil, fmt.Errorf("committing council round: %w", err)
	}
	return round, stored, nil
}

// RoundDraft is a council round not yet stored. An empty Status stores the
// round as generated.
type RoundDraft struct {
	Memos  []types.CouncilMemo
	Status string
	Notes  string
}

func (s *Store) insertCouncilRound(ctx context.Context, tx *sql.Tx, ideaID int64, draft RoundDraft) (types.CouncilRound, []types.CouncilMemo, error) {
	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(round_number) FROM council_rounds WHERE idea_id = ?`, ideaID,
	).Scan(&last); err != nil {
		return types.CouncilRound{}, nil, fmt.Errorf("reading round number for idea %d: %w", ideaID, err)
	}

	t, ts := s.stamp()
	round := types.CouncilRound{
		IdeaID:      ideaID,
		RoundNumber: int(last.Int64) + 1,
		Status:      draft.Status,
		Notes:       draft.Notes,
		CreatedAt:   t,
	}
	if round.Status == "" {
		round.Status = types.RoundGenerated
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO council_rounds (idea_id, round_number, status, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		ideaID, round.RoundNumber, round.Status, round.Notes, ts,
	)
	if err != nil {
		return types.CouncilRound{}, nil, fmt.Errorf("inserting council round: %w", err)
	}
	if round.ID, err = res.LastInsertId(); err != nil {
		return types.CouncilRound{}, nil, fmt.Errorf("reading round id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO council_memos (idea_id, round_id, referee, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return types.CouncilRound{}, nil, fmt.Errorf("preparing memo insert: %w", err)
	}
	defer stmt.Close()

	stored := make([]types.CouncilMemo, 0, len(draft.Memos))
	for _, m := range draft.Memos {
		res, err := stmt.ExecContext(ctx, ideaID, round.ID, m.Referee, m.Content, ts)
		if err != nil {
			return types.CouncilRound{}, nil, fmt.Errorf("inserting memo %s: %w", m.Referee, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return types.CouncilRound{}, nil, fmt.Errorf("reading memo id: %w", err)
		}
		roundID := round.ID
		stored = append(stored, types.CouncilMemo{
			ID: id, IdeaID: ideaID, RoundID: &roundID,
			Referee: m.Referee, Content: m.Content, CreatedAt: t,
		})
	}
	return round, stored, nil
}

const roundColumns = `id, idea_id, round_number, status, notes, created_at`

// LatestCouncilRound returns the highest-numbered round of an idea.
func (s *Store) LatestCouncilRound(ctx context.Context, ideaID int64) (types.CouncilRound, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM council_rounds WHERE idea_id = ?
		 ORDER BY round_number DESC LIMIT 1`, ideaID)
	r, err := scanRound(row)
	if err != nil {
		return types.CouncilRound{}, notFound(err, "council round for idea", ideaID)
	}
	return r, nil
}

// GetCouncilRound returns one round of an idea.
func (s *Store) GetCouncilRound(ctx context.Context, ideaID, roundID int64) (types.CouncilRound, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+roundColumns+` FROM council_rounds WHERE idea_id = ? AND id = ?`, ideaID, roundID)
	r, err := scanRound(row)
	if err != nil {
		return types.CouncilRound{}, notFound(err, "council round", roundID)
	}
	return r, nil
}

// ListCouncilRounds returns the rounds of an idea, newest first.
func (s *Store) ListCouncilRounds(ctx context.Context, ideaID int64) ([]types.CouncilRound, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM council_rounds WHERE idea_id = ? ORDER BY round_number DESC`, ideaID)
	if err != nil {
		return nil, fmt.Errorf("listing council rounds for idea %d: %w", ideaID, err)
	}
	defer rows.Close()

	var rounds []types.CouncilRound
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning council round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// UpdateRoundOutcome writes the Gate 4 classification onto a round.
func (s *Store) UpdateRoundOutcome(ctx context.Context, roundID int64, status types.GateStatus, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE council_rounds SET status = ?, notes = ? WHERE id = ?`, string(status), notes, roundID)
	if err != nil {
		return fmt.Errorf("updating council round %d: %w", roundID, err)
	}
	return requireRow(res, "council round", roundID)
}

const memoColumns = `id, idea_id, round_id, referee, content, created_at`

// ListCouncilMemos returns every council memo of an idea in insertion order,
// including memos without a round.
func (s *Store) ListCouncilMemos(ctx context.Context, ideaID int64) ([]types.CouncilMemo, error) {
	return s.queryMemos(ctx,
		`SELECT `+memoColumns+` FROM council_memos WHERE idea_id = ? ORDER BY id`, ideaID)
}

// ListRoundMemos returns the memos attached to one round.
func (s *Store) ListRoundMemos(ctx context.Context, roundID int64) ([]types.CouncilMemo, error) {
	return s.queryMemos(ctx,
		`SELECT `+memoColumns+` FROM council_memos WHERE round_id = ? ORDER BY id`, roundID)
}

// AddCouncilMemo stores a memo outside any round.
func (s *Store) AddCouncilMemo(ctx context.Context, ideaID int64, referee, content string) (types.CouncilMemo, error) {
	t, ts := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO council_memos (idea_id, referee, content, created_at) VALUES (?, ?, ?, ?)`,
		ideaID, referee, content, ts)
	if err != nil {
		return types.CouncilMemo{}, fmt.Errorf("inserting council memo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.CouncilMemo{}, fmt.Errorf("reading memo id: %w", err)
	}
	return types.CouncilMemo{ID: id, IdeaID: ideaID, Referee: referee, Content: content, CreatedAt: t}, nil
}

func (s *Store) queryMemos(ctx context.Context, query string, arg int64) ([]types.CouncilMemo, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing council memos: %w", err)
	}
	defer rows.Close()

	var memos []types.CouncilMemo
	for rows.Next() {
		var (
			m       types.CouncilMemo
			roundID sql.NullInt64
			created string
		)
		if err := rows.Scan(&m.ID, &m.IdeaID, &roundID, &m.Referee, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scanning council memo: %w", err)
		}
		m.RoundID = intPtr(roundID)
		m.CreatedAt = parseTime(created)
		memos = append(memos, m)
	}
	return memos, rows.Err()
}

// UpsertGate sets the live result of one gate, replacing any previous one.
func (s *Store) UpsertGate(ctx context.Context, ideaID int64, gate int, status types.GateStatus, notes string) error {
	_, ts := s.stamp()
	return upsertGate(ctx, s.db, ts, types.GateResult{IdeaID: ideaID, Gate: gate, Status: status, Notes: notes})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertGate(ctx context.Context, db execer, ts string, g types.GateResult) error {
	if g.Gate < types.GateStructure || g.Gate > types.GateCouncil {
		return fmt.Errorf("gate %d out of range 1-4: %w", g.Gate, ErrInvalidGate)
	}
	if !g.Status.Valid() {
		return fmt.Errorf("gate status %q: %w", g.Status, ErrInvalidGate)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO gate_results (idea_id, gate, status, notes, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(idea_id, gate) DO UPDATE SET
			status=excluded.status, notes=excluded.notes, updated_at=excluded.updated_at`,
		g.IdeaID, g.Gate, string(g.Status), g.Notes, ts,
	)
	if err != nil {
		return fmt.Errorf("upserting gate %d for idea %d: %w", g.Gate, g.IdeaID, err)
	}
	return nil
}

// ListGates returns the live gate results of an idea ordered by gate number.
func (s *Store) ListGates(ctx context.Context, ideaID int64) ([]types.GateResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idea_id, gate, status, notes, updated_at FROM gate_results WHERE idea_id = ? ORDER BY gate`, ideaID)
	if err != nil {
		return nil, fmt.Errorf("listing gates for idea %d: %w", ideaID, err)
	}
	defer rows.Close()

	var gates []types.GateResult
	for rows.Next() {
		var (
			g       types.GateResult
			status  string
			updated string
		)
		if err := rows.Scan(&g.IdeaID, &g.Gate, &status, &g.Notes, &updated); err != nil {
			return nil, fmt.Errorf("scanning gate: %w", err)
		}
		g.Status = types.GateStatus(status)
		g.UpdatedAt = parseTime(updated)
		gates = append(gates, g)
	}
	return gates, rows.Err()
}

func scanRound(sc scanner) (types.CouncilRound, error) {
	var (
		r       types.CouncilRound
		created string
	)
	if err := sc.Scan(&r.ID, &r.IdeaID, &r.RoundNumber, &r.Status, &r.Notes, &created); err != nil {
		return types.CouncilRound{}, err
	}
	r.CreatedAt = parseTime(created)
	return r, nil
}
