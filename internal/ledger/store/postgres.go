package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"welfare/internal/ledger"
	"welfare/internal/platform/postgres"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
	txcontext "welfare/pkg/platform/tx"
)

// PostgresStore persists match records. The unique constraint on
// (citizen_id, scheme_id) makes CreateIfAbsent atomic across workers.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, citizen_id, scheme_id, status, transaction_id, payment_date,
	failure_reason, attempts, created_at, updated_at`

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, rec *ledger.MatchRecord) (bool, error) {
	query := `
		INSERT INTO match_records (id, citizen_id, scheme_id, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
		ON CONFLICT (citizen_id, scheme_id) DO NOTHING
		RETURNING id
	`
	var id uuid.UUID
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(rec.ID), uuid.UUID(rec.CitizenID), uuid.UUID(rec.SchemeID),
		string(rec.Status), rec.CreatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create match record: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.MatchID) (*ledger.MatchRecord, error) {
	return s.findOne(ctx, `SELECT `+recordColumns+` FROM match_records WHERE id = $1`, uuid.UUID(id))
}

// FindForUpdate locks the row until the surrounding transaction ends.
func (s *PostgresStore) FindForUpdate(ctx context.Context, id domain.MatchID) (*ledger.MatchRecord, error) {
	if _, ok := txcontext.From(ctx); !ok {
		return nil, errors.New("find for update: no transaction in context")
	}
	return s.findOne(ctx, `SELECT `+recordColumns+` FROM match_records WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
}

func (s *PostgresStore) FindByPair(ctx context.Context, citizenID domain.CitizenID, schemeID domain.SchemeID) (*ledger.MatchRecord, error) {
	return s.findOne(ctx,
		`SELECT `+recordColumns+` FROM match_records WHERE citizen_id = $1 AND scheme_id = $2`,
		uuid.UUID(citizenID), uuid.UUID(schemeID))
}

func (s *PostgresStore) findOne(ctx context.Context, query string, args ...any) (*ledger.MatchRecord, error) {
	rec, err := scanRecord(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find match record: %w", err)
	}
	return rec, nil
}

const transactionIDKey = "match_records_transaction_id_key"

// UpdateSettlement writes the payment fields unless the row is already PAID.
// A transaction ID already used by another record is a conflict.
func (s *PostgresStore) UpdateSettlement(ctx context.Context, rec *ledger.MatchRecord) error {
	query := `
		UPDATE match_records
		SET status = $2, transaction_id = $3, payment_date = $4, failure_reason = $5,
			attempts = $6, updated_at = $7
		WHERE id = $1 AND status <> 'PAID'
	`
	var txnID sql.NullString
	if rec.TransactionID != "" {
		txnID = sql.NullString{String: rec.TransactionID, Valid: true}
	}
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(rec.ID), string(rec.Status), txnID, rec.PaymentDate,
		rec.FailureReason, rec.Attempts, rec.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, transactionIDKey) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update settlement: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update settlement rows: %w", err)
	}
	if rows == 0 {
		if _, err := s.FindByID(ctx, rec.ID); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ListApplications(ctx context.Context, schemeID domain.SchemeID) ([]ledger.Application, error) {
	query := `
		SELECT m.id, m.citizen_id, m.scheme_id, m.status, m.transaction_id, m.payment_date,
			m.failure_reason, m.attempts, m.created_at, m.updated_at,
			c.name, c.phone, c.bank_account, c.ifsc
		FROM match_records m
		JOIN citizens c ON c.id = m.citizen_id
		WHERE m.scheme_id = $1
		ORDER BY m.created_at, m.id
	`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(schemeID))
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []ledger.Application
	for rows.Next() {
		var app ledger.Application
		rec, err := scanRecord(rows, &app.CitizenName, &app.Phone, &app.BankAccount, &app.IFSC)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		app.Record = *rec
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByScheme(ctx context.Context, schemeID domain.SchemeID) (int, error) {
	var n int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_records WHERE scheme_id = $1`, uuid.UUID(schemeID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count match records: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, extra ...any) (*ledger.MatchRecord, error) {
	var (
		rec                     ledger.MatchRecord
		id, citizenID, schemeID uuid.UUID
		status                  string
		txnID                   sql.NullString
		paidAt                  sql.NullTime
	)
	dest := append([]any{
		&id, &citizenID, &schemeID, &status, &txnID, &paidAt,
		&rec.FailureReason, &rec.Attempts, &rec.CreatedAt, &rec.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec.ID = domain.MatchID(id)
	rec.CitizenID = domain.CitizenID(citizenID)
	rec.SchemeID = domain.SchemeID(schemeID)
	rec.Status = ledger.Status(status)
	rec.TransactionID = txnID.String
	if paidAt.Valid {
		t := paidAt.Time
		rec.PaymentDate = &t
	}
	return &rec, nil
}
