// Package history persists validation runs in SQLite so past campaigns stay
// queryable from the CLI and the HTTP API.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/koopmanstack/koopman-verify/internal/models"
	"github.com/koopmanstack/koopman-verify/internal/utils"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS validation_runs (
    id              TEXT PRIMARY KEY,
    created_at      TEXT NOT NULL,
    delta_r         REAL NOT NULL,
    probability     REAL NOT NULL,
    tolerance       REAL NOT NULL,
    policy          TEXT NOT NULL,
    total           INTEGER NOT NULL,
    passed          INTEGER NOT NULL,
    failures        INTEGER NOT NULL,
    mean_empirical  REAL NOT NULL
);
`

const resultsSchema = `
CREATE TABLE IF NOT EXISTS validation_results (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL,
    source          TEXT NOT NULL,
    theoretical     REAL NOT NULL,
    empirical       REAL NOT NULL,
    total_points    INTEGER NOT NULL,
    within_bounds   INTEGER NOT NULL,
    mean_error      REAL NOT NULL,
    std_error       REAL NOT NULL,
    max_violation   REAL NOT NULL,
    passed          INTEGER NOT NULL
);
`

const resultsIndex = `
CREATE INDEX IF NOT EXISTS idx_validation_results_run
ON validation_results(run_id);
`

// Store persists validation runs and their per-trajectory results.
type Store struct {
	db *sql.DB
}

// NewStore initialises the schema and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	for _, stmt := range []string{runsSchema, resultsSchema, resultsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("init history schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// RecordRun persists a run summary together with its results in one
// transaction.
func (s *Store) RecordRun(ctx context.Context, run models.ValidationRun, results []models.ValidationResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO validation_runs
		(id, created_at, delta_r, probability, tolerance, policy, total, passed, failures, mean_empirical)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339),
		run.Bound.DeltaR,
		run.Bound.Probability,
		run.Tolerance,
		run.Policy,
		run.Total,
		run.Passed,
		run.Failures,
		run.MeanEmpirical,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, r := range results {
		passed := 0
		if r.ValidationPassed {
			passed = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO validation_results
			(run_id, source, theoretical, empirical, total_points, within_bounds,
			 mean_error, std_error, max_violation, passed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			r.Source,
			r.TheoreticalProbability,
			r.EmpiricalProbability,
			r.TotalPoints,
			r.PointsWithinBounds,
			r.MeanTrackingError,
			r.StdTrackingError,
			r.MaxViolation,
			passed,
		)
		if err != nil {
			return fmt.Errorf("insert result for %s: %w", r.Source, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.ValidationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, delta_r, probability, tolerance, policy,
		       total, passed, failures, mean_empirical
		FROM validation_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ValidationRun
	for rows.Next() {
		var run models.ValidationRun
		var createdAt string
		if err := rows.Scan(&run.ID, &createdAt, &run.Bound.DeltaR, &run.Bound.Probability,
			&run.Tolerance, &run.Policy, &run.Total, &run.Passed, &run.Failures, &run.MeanEmpirical); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := utils.ParseRFC3339(createdAt); err == nil {
			run.CreatedAt = t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunResults returns the per-trajectory results of one run in insertion
// order.
func (s *Store) RunResults(ctx context.Context, runID string) ([]models.ValidationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, theoretical, empirical, total_points, within_bounds,
		       mean_error, std_error, max_violation, passed
		FROM validation_results
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []models.ValidationResult
	for rows.Next() {
		var r models.ValidationResult
		var passed int
		if err := rows.Scan(&r.Source, &r.TheoreticalProbability, &r.EmpiricalProbability,
			&r.TotalPoints, &r.PointsWithinBounds, &r.MeanTrackingError, &r.StdTrackingError,
			&r.MaxViolation, &passed); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.ValidationPassed = passed == 1
		results = append(results, r)
	}
	return results, rows.Err()
}
