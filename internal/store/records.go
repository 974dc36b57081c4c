// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/pdiddy/research-council/pkg/types"
)

// AddAgentMemo appends an audit memo. ID and CreatedAt on m are ignored.
func (s *Store) AddAgentMemo(ctx context.Context, m types.AgentMemo) (types.AgentMemo, error) {
	_, ts := s.stamp()
	return insertAgentMemo(ctx, s.db, ts, m)
}

func insertAgentMemo(ctx context.Context, db execer, ts string, m types.AgentMemo) (types.AgentMemo, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO agent_memos (run_id, idea_id, direction, sender, topic, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, nullInt(m.IdeaID), m.Direction, m.Sender, m.Topic, m.Content, ts,
	)
	if err != nil {
		return types.AgentMemo{}, fmt.Errorf("inserting agent memo %q: %w", m.Topic, err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return types.AgentMemo{}, fmt.Errorf("reading agent memo id: %w", err)
	}
	m.CreatedAt = parseTime(ts)
	return m, nil
}

// ListAgentMemos returns the memos of a run in insertion order.
func (s *Store) ListAgentMemos(ctx context.Context, runID int64) ([]types.AgentMemo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, idea_id, direction, sender, topic, content, created_at
		 FROM agent_memos WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing agent memos for run %d: %w", runID, err)
	}
	defer rows.Close()

	var memos []types.AgentMemo
	for rows.Next() {
		var (
			m       types.AgentMemo
			ideaID  sql.NullInt64
			created string
		)
		if err := rows.Scan(&m.ID, &m.RunID, &ideaID, &m.Direction, &m.Sender, &m.Topic, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scanning agent memo: %w", err)
		}
		m.IdeaID = intPtr(ideaID)
		m.CreatedAt = parseTime(created)
		memos = append(memos, m)
	}
	return memos, rows.Err()
}

// AddCredential stores a sealed API key under a new uuid.
func (s *Store) AddCredential(ctx context.Context, c types.Credential) (types.Credential, error) {
	t, ts := s.stamp()
	c.ID = uuid.NewString()
	c.CreatedAt = t
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, provider, name, ciphertext, nonce, salt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Provider, c.Name, c.Ciphertext, c.Nonce, c.Salt, ts,
	)
	if err != nil {
		return types.Credential{}, fmt.Errorf("inserting credential for %s: %w", c.Provider, err)
	}
	return c, nil
}

const credentialColumns = `id, provider, name, ciphertext, nonce, salt, created_at`

// LatestCredential returns the most recently added credential for provider.
func (s *Store) LatestCredential(ctx context.Context, provider string) (types.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE provider = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, provider)
	c, err := scanCredential(row)
	if err != nil {
		return types.Credential{}, notFound(err, "credential for provider", provider)
	}
	return c, nil
}

// ListCredentials returns every credential, newest first. Sealed fields are
// populated but never serialized.
func (s *Store) ListCredentials(ctx context.Context) ([]types.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close()

	var creds []types.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func scanCredential(sc scanner) (types.Credential, error) {
	var (
		c       types.Credential
		created string
	)
	if err := sc.Scan(&c.ID, &c.Provider, &c.Name, &c.Ciphertext, &c.Nonce, &c.Salt, &created); err != nil {
		return types.Credential{}, err
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

// PutLiteratureAssessment creates or replaces the assessment of a query.
func (s *Store) PutLiteratureAssessment(ctx context.Context, queryID int64, content string) (types.LiteratureAssessment, error) {
	t, ts := s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO literature_assessments (query_id, content, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(query_id) DO UPDATE SET content=excluded.content, updated_at=excluded.updated_at`,
		queryID, content, ts,
	)
	if err != nil {
		return types.LiteratureAssessment{}, fmt.Errorf("storing assessment for query %d: %w", queryID, err)
	}
	return types.LiteratureAssessment{QueryID: queryID, Content: content, UpdatedAt: t}, nil
}

// GetLiteratureAssessment returns the assessment of a query.
func (s *Store) GetLiteratureAssessment(ctx context.Context, queryID int64) (types.LiteratureAssessment, error) {
	var (
		a       types.LiteratureAssessment
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT query_id, content, updated_at FROM literature_assessments WHERE query_id = ?`, queryID,
	).Scan(&a.QueryID, &a.Content, &updated)
	if err != nil {
		return types.LiteratureAssessment{}, notFound(err, "literature assessment", queryID)
	}
	a.UpdatedAt = parseTime(updated)
	return a, nil
}
