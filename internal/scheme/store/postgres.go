package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"welfare/internal/platform/postgres"
	"welfare/internal/scheme"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
	txcontext "welfare/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sc *scheme.Scheme) error {
	query := `
		INSERT INTO schemes (id, title, description, category, amount, state, district, criteria, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	criteria := string(sc.Criteria)
	if criteria == "" {
		criteria = "{}"
	}
	var createdBy any
	if !sc.CreatedBy.IsNil() {
		createdBy = uuid.UUID(sc.CreatedBy)
	}
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(sc.ID), sc.Title, sc.Description, sc.Category, sc.Amount,
		sc.State, sc.District, criteria, createdBy,
	).Scan(&sc.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert scheme: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.SchemeID) (*scheme.Scheme, error) {
	query := `
		SELECT id, title, description, category, amount, state, district, criteria, created_by, created_at
		FROM schemes
		WHERE id = $1
	`
	var (
		sc        scheme.Scheme
		schemeID  uuid.UUID
		criteria  []byte
		createdBy uuid.NullUUID
	)
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(id)).Scan(
		&schemeID, &sc.Title, &sc.Description, &sc.Category, &sc.Amount,
		&sc.State, &sc.District, &criteria, &createdBy, &sc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find scheme: %w", err)
	}
	sc.ID = domain.SchemeID(schemeID)
	sc.Criteria = criteria
	if createdBy.Valid {
		sc.CreatedBy = domain.CitizenID(createdBy.UUID)
	}
	return &sc, nil
}
