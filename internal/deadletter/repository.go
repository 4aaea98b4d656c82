package deadletter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"logscrub/internal/constants"
	pkgerrors "logscrub/pkg/errors"
	"logscrub/pkg/metrics"
)

type Repository interface {
	Insert(ctx context.Context, dl *DeadLetter) error
	List(ctx context.Context, filter ListFilter) ([]DeadLetter, error)
	Get(ctx context.Context, id string) (*DeadLetter, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, dl *DeadLetter) error {
	query := `
		INSERT INTO dead_letters (id, tenant_id, log_id, source_topic, reason, error, attempts, payload, dead_lettered_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		dl.ID, dl.TenantID, dl.LogID, dl.SourceTopic, dl.Reason,
		dl.Error, dl.Attempts, dl.Payload, dl.DeadLettered, dl.ArchivedAt,
	)
	metrics.ObserveDatabaseQuery("dlq-service", "postgres", "insert_dead_letter", time.Since(start), err)

	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]DeadLetter, error) {
	query := `
		SELECT id, tenant_id, log_id, source_topic, reason, error, attempts, payload, dead_lettered_at, archived_at
		FROM dead_letters
		WHERE ($1 = '' OR tenant_id = $1)
		  AND ($2 = '' OR source_topic = $2)
		  AND ($3 = '' OR reason = $3)
		ORDER BY archived_at DESC
		LIMIT $4 OFFSET $5
	`

	limit := filter.Limit
	if limit <= 0 || limit > constants.MaxListLimit {
		limit = constants.DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, filter.TenantID, filter.SourceTopic, filter.Reason, limit, offset)
	metrics.ObserveDatabaseQuery("dlq-service", "postgres", "list_dead_letters", time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	letters := make([]DeadLetter, 0)
	for rows.Next() {
		var dl DeadLetter
		if err := rows.Scan(
			&dl.ID, &dl.TenantID, &dl.LogID, &dl.SourceTopic, &dl.Reason,
			&dl.Error, &dl.Attempts, &dl.Payload, &dl.DeadLettered, &dl.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dead letters: %w", err)
	}

	return letters, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*DeadLetter, error) {
	query := `
		SELECT id, tenant_id, log_id, source_topic, reason, error, attempts, payload, dead_lettered_at, archived_at
		FROM dead_letters
		WHERE id = $1
	`

	start := time.Now()
	row := r.db.QueryRowContext(ctx, query, id)

	var dl DeadLetter
	err := row.Scan(
		&dl.ID, &dl.TenantID, &dl.LogID, &dl.SourceTopic, &dl.Reason,
		&dl.Error, &dl.Attempts, &dl.Payload, &dl.DeadLettered, &dl.ArchivedAt,
	)
	metrics.ObserveDatabaseQuery("dlq-service", "postgres", "get_dead_letter", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter: %w", err)
	}

	return &dl, nil
}
