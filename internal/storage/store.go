// Package storage persists finished reviews in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
)

// Store defines the review history operations.
type Store interface {
	SaveReview(ctx context.Context, project string, mrIID int, res *core.ReviewResult) error
	LatestReview(ctx context.Context, project string, mrIID int) (*core.ReviewResult, error)
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a PostgreSQL-backed Store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// SaveReview inserts one finished review.
func (s *postgresStore) SaveReview(ctx context.Context, project string, mrIID int, res *core.ReviewResult) error {
	findings, err := json.Marshal(res.Findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}

	query := `INSERT INTO reviews (review_id, project_id, mr_iid, head_sha, review_type, ai_model, score, summary, findings, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	headSHA := ""
	if res.MR != nil {
		headSHA = res.MR.HeadSHA
	}
	_, err = s.db.ExecContext(ctx, query,
		res.ID, project, mrIID, headSHA, res.Type, res.Model, res.Score, res.Summary, findings, res.CreatedAt)
	return err
}

// LatestReview returns the most recent review of a merge request.
func (s *postgresStore) LatestReview(ctx context.Context, project string, mrIID int) (*core.ReviewResult, error) {
	query := `
		SELECT review_id, review_type, ai_model, score, summary, findings, created_at
		FROM reviews
		WHERE project_id = $1 AND mr_iid = $2
		ORDER BY created_at DESC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, project, mrIID)

	var (
		res      core.ReviewResult
		findings []byte
		created  time.Time
	)
	err := row.Scan(&res.ID, &res.Type, &res.Model, &res.Score, &res.Summary, &findings, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.Errorf(core.ErrNotFound, "no review found for %s!%d", project, mrIID)
		}
		return nil, err
	}
	if err := json.Unmarshal(findings, &res.Findings); err != nil {
		return nil, fmt.Errorf("unmarshal findings: %w", err)
	}
	res.Status = core.StatusCompleted
	res.CreatedAt = created
	return &res, nil
}
