package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"welfare/internal/notification"
	"welfare/pkg/domain"
	txcontext "welfare/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, citizen_id, message, kind, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(n.ID), uuid.UUID(n.CitizenID), n.Message, string(n.Kind), n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCitizen(ctx context.Context, citizenID domain.CitizenID) ([]notification.Notification, error) {
	query := `
		SELECT id, citizen_id, message, kind, read, created_at
		FROM notifications
		WHERE citizen_id = $1
		ORDER BY created_at DESC
	`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(citizenID))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		var (
			n         notification.Notification
			id, owner uuid.UUID
			kind      string
		)
		if err := rows.Scan(&id, &owner, &n.Message, &kind, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ID = domain.NotificationID(id)
		n.CitizenID = domain.CitizenID(owner)
		n.Kind = notification.Kind(kind)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}
