package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"welfare/internal/outbox"
	"welfare/internal/queue"
	"welfare/pkg/platform/sentinel"
	txcontext "welfare/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts the job; call it with the writer's transaction in ctx.
func (s *PostgresStore) Add(ctx context.Context, job queue.Job) error {
	id, err := uuid.Parse(job.ID)
	if err != nil {
		return fmt.Errorf("outbox job id: %w", err)
	}
	query := `
		INSERT INTO outbox (id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		id, string(job.Kind), string(job.Payload), job.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// ClaimUnpublished locks up to limit pending rows, skipping rows another
// relay holds.
func (s *PostgresStore) ClaimUnpublished(ctx context.Context, limit int) ([]outbox.Entry, error) {
	t, ok := txcontext.From(ctx)
	if !ok {
		return nil, errors.New("claim outbox: no transaction in context")
	}
	query := `
		SELECT id, kind, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := t.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox: %w", err)
	}
	defer rows.Close()

	var out []outbox.Entry
	for rows.Next() {
		var (
			id      uuid.UUID
			kind    string
			payload []byte
			created time.Time
		)
		if err := rows.Scan(&id, &kind, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, outbox.Entry{
			Job: queue.Job{
				ID:         id.String(),
				Kind:       queue.Kind(kind),
				Payload:    payload,
				EnqueuedAt: created,
			},
			CreatedAt: created,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE outbox SET published_at = $2 WHERE id = ANY($1::uuid[])`
	if _, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query, pq.Array(ids), at); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// PurgePublished deletes rows published before cutoff.
func (s *PostgresStore) PurgePublished(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return res.RowsAffected()
}
