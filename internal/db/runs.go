package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/TedTes/genres-sub000/internal/types"
)

// DefaultListLimit caps run listings
const DefaultListLimit = 50

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("run not found")

// Run is one persisted optimization result.
type Run struct {
	ID          uuid.UUID                 `json:"id"`
	RequesterID string                    `json:"requester_id"`
	CacheKey    string                    `json:"cache_key"`
	MatchScore  float64                   `json:"match_score"`
	Grade       string                    `json:"grade"`
	InputType   string                    `json:"input_type"`
	CacheHit    bool                      `json:"cache_hit"`
	Result      *types.OptimizationResult `json:"result,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// RunFromResult builds the record for a result. The request ID becomes the
// run ID when it is a UUID.
func RunFromResult(res *types.OptimizationResult) Run {
	id, err := uuid.Parse(res.RequestID)
	if err != nil {
		id = uuid.New()
	}
	return Run{
		ID:          id,
		RequesterID: res.RequesterID,
		CacheKey:    res.CacheKey,
		MatchScore:  res.MatchScore,
		Grade:       res.Grade,
		InputType:   string(res.InputType),
		CacheHit:    res.CacheHit,
		Result:      res,
		CreatedAt:   res.CreatedAt,
	}
}

// SaveRun stores a result. Saving the same request ID twice keeps the first.
func (db *DB) SaveRun(ctx context.Context, res *types.OptimizationResult) (uuid.UUID, error) {
	run := RunFromResult(res)
	payload, err := json.Marshal(res)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO optimization_runs (id, requester_id, cache_key, match_score, grade, input_type, cache_hit, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		run.ID, run.RequesterID, run.CacheKey, run.MatchScore, run.Grade, run.InputType, run.CacheHit, payload, createdAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save run: %w", err)
	}
	return run.ID, nil
}

// GetRun loads a run with its full result.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	var payload []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, requester_id, cache_key, match_score, grade, input_type, cache_hit, result, created_at
		 FROM optimization_runs WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.RequesterID, &run.CacheKey, &run.MatchScore, &run.Grade,
		&run.InputType, &run.CacheHit, &payload, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var res types.OptimizationResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run result: %w", err)
	}
	run.Result = &res
	return &run, nil
}

// ListRunsByRequester returns summaries, newest first, without results.
func (db *DB) ListRunsByRequester(ctx context.Context, requesterID string, limit int) ([]Run, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, requester_id, cache_key, match_score, grade, input_type, cache_hit, created_at
		 FROM optimization_runs
		 WHERE requester_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		requesterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.RequesterID, &run.CacheKey, &run.MatchScore,
			&run.Grade, &run.InputType, &run.CacheHit, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
