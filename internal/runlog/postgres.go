package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"indexer/internal/constants"
	"indexer/pkg/metrics"
	"indexer/pkg/models"
)

// PostgresStore keeps the full run history in the index_runs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, run Run) error {
	query := `
		INSERT INTO index_runs (id, message_id, entity_id, token, outcome, stage, archived, published, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	start := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.MessageID,
		run.EntityID,
		run.Token,
		run.Outcome.String(),
		run.Stage,
		run.Archived,
		run.Published,
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	observe("insert", start, err)
	if err != nil {
		metrics.IncRunLogWrite("postgres", "error")
		return fmt.Errorf("failed to insert run: %w", err)
	}

	metrics.IncRunLogWrite("postgres", "ok")
	return nil
}

func (s *PostgresStore) History(ctx context.Context, token string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	if limit > constants.MaxHistoryLimit {
		limit = constants.MaxHistoryLimit
	}

	query := `
		SELECT id, message_id, entity_id, token, outcome, stage, archived, published, error, started_at, finished_at
		FROM index_runs
		WHERE token = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, token, limit)
	observe("select", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var run Run
		var outcome string
		if err := rows.Scan(
			&run.ID,
			&run.MessageID,
			&run.EntityID,
			&run.Token,
			&outcome,
			&run.Stage,
			&run.Archived,
			&run.Published,
			&run.Error,
			&run.StartedAt,
			&run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Outcome, _ = models.ParseOutcome(outcome)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(constants.ServiceName, "postgres", operation, status)
	metrics.ObserveDatabaseQueryDuration(constants.ServiceName, "postgres", operation, time.Since(start))
}
