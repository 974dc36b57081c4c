// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/research-council/pkg/types"
)

// ErrRunTransition is returned when a run is moved out of a state that does
// not allow the requested transition.
var ErrRunTransition = errors.New("invalid run transition")

const runColumns = `id, status, provider, model, idea_count, topic_focus, literature_query_id,
	use_assessment_seeds, created_at, updated_at, log`

// CreateRun inserts a queued run. Status, timestamps and log on r are ignored.
func (s *Store) CreateRun(ctx context.Context, r types.Run) (types.Run, error) {
	t, ts := s.stamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (status, provider, model, idea_count, topic_focus, literature_query_id,
			use_assessment_seeds, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(types.RunQueued), r.Provider, r.Model, r.IdeaCount, r.TopicFocus,
		nullInt(r.LiteratureQueryID), r.UseAssessmentSeeds, ts, ts,
	)
	if err != nil {
		return types.Run{}, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Run{}, fmt.Errorf("reading run id: %w", err)
	}

	r.ID = id
	r.Status = types.RunQueued
	r.CreatedAt, r.UpdatedAt = t, t
	r.Log = ""
	return r, nil
}

// GetRun returns the run with id.
func (s *Store) GetRun(ctx context.Context, id int64) (types.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		return types.Run{}, notFound(err, "run", id)
	}
	return r, nil
}

// ListRuns returns runs newest first. A limit of zero or less returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// MarkRunRunning moves a queued run to running.
func (s *Store) MarkRunRunning(ctx context.Context, id int64) error {
	return s.transitionRun(ctx, id, types.RunRunning, "", types.RunQueued)
}

// CompleteRun moves a running run to completed.
func (s *Store) CompleteRun(ctx context.Context, id int64) error {
	return s.transitionRun(ctx, id, types.RunCompleted, "", types.RunRunning)
}

// FailRun moves a queued or running run to failed and stores msg verbatim
// as the run log.
func (s *Store) FailRun(ctx context.Context, id int64, msg string) error {
	return s.transitionRun(ctx, id, types.RunFailed, msg, types.RunQueued, types.RunRunning)
}

func (s *Store) transitionRun(ctx context.Context, id int64, to types.RunStatus, log string, from ...types.RunStatus) error {
	_, ts := s.stamp()

	query := `UPDATE runs SET status = ?, updated_at = ?, log = ? WHERE id = ? AND status IN (`
	args := []any{string(to), ts, log, id}
	for i, f := range from {
		if i > 0 {
			query += `, `
		}
		query += `?`
		args = append(args, string(f))
	}
	query += `)`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating run %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking run %d update: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	current, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("run %d: %s to %s: %w", id, current.Status, to, ErrRunTransition)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (types.Run, error) {
	var (
		r       types.Run
		status  string
		queryID sql.NullInt64
		created string
		updated string
	)
	err := sc.Scan(&r.ID, &status, &r.Provider, &r.Model, &r.IdeaCount, &r.TopicFocus,
		&queryID, &r.UseAssessmentSeeds, &created, &updated, &r.Log)
	if err != nil {
		return types.Run{}, err
	}
	r.Status = types.RunStatus(status)
	r.LiteratureQueryID = intPtr(queryID)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}
