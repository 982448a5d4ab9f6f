package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"welfare/internal/citizen"
	"welfare/internal/platform/postgres"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
	txcontext "welfare/pkg/platform/tx"
)

// PostgresStore persists citizens in the citizens table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const citizenColumns = `id, name, phone, role, state, district, income, age, gender,
	occupation, education, pincode, bank_account, ifsc, created_at`

func (s *PostgresStore) Create(ctx context.Context, c *citizen.Citizen, passwordHash string) error {
	query := `
		INSERT INTO citizens (id, name, phone, password_hash, role, state, district, income, age,
			gender, occupation, education, pincode, bank_account, ifsc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`
	var income sql.NullInt64
	if c.Profile.Income != nil {
		income = sql.NullInt64{Int64: *c.Profile.Income, Valid: true}
	}
	var age sql.NullInt32
	if c.Profile.Age != nil {
		age = sql.NullInt32{Int32: int32(*c.Profile.Age), Valid: true}
	}
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(c.ID), c.Name, c.Phone, passwordHash, string(c.Role),
		c.Profile.State, c.Profile.District, income, age,
		c.Profile.Gender, c.Profile.Occupation, c.Profile.EducationLevel(), c.Profile.Pincode,
		c.BankAccount, c.IFSC,
	).Scan(&c.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert citizen: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.CitizenID) (*citizen.Citizen, error) {
	query := `SELECT ` + citizenColumns + ` FROM citizens WHERE id = $1`
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(id))
	c, err := scanCitizen(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find citizen: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (*citizen.Citizen, error) {
	query := `SELECT ` + citizenColumns + ` FROM citizens WHERE phone = $1`
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, phone)
	c, err := scanCitizen(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find citizen by phone: %w", err)
	}
	return c, nil
}

// ListCandidates pages beneficiaries by id. Empty State matches all states.
func (s *PostgresStore) ListCandidates(ctx context.Context, q citizen.CandidateQuery) ([]citizen.Citizen, error) {
	query := `
		SELECT ` + citizenColumns + `
		FROM citizens
		WHERE role = $1
		  AND ($2 = '' OR state = $2)
		  AND ($3::uuid IS NULL OR id > $3::uuid)
		ORDER BY id
		LIMIT $4
	`
	var after any
	if !q.After.IsNil() {
		after = uuid.UUID(q.After)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query,
		string(citizen.RoleBeneficiary), q.State, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	out := make([]citizen.Citizen, 0, limit)
	for rows.Next() {
		c, err := scanCitizen(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCitizen(row rowScanner) (*citizen.Citizen, error) {
	var (
		c      citizen.Citizen
		id     uuid.UUID
		role   string
		income sql.NullInt64
		age    sql.NullInt32
	)
	err := row.Scan(&id, &c.Name, &c.Phone, &role,
		&c.Profile.State, &c.Profile.District, &income, &age,
		&c.Profile.Gender, &c.Profile.Occupation, &c.Profile.Education, &c.Profile.Pincode,
		&c.BankAccount, &c.IFSC, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = domain.CitizenID(id)
	c.Role = citizen.Role(role)
	if income.Valid {
		v := income.Int64
		c.Profile.Income = &v
	}
	if age.Valid {
		v := int(age.Int32)
		c.Profile.Age = &v
	}
	return &c, nil
}
