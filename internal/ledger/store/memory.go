package store

import (
	"context"
	"sort"
	"sync"

	"welfare/internal/citizen"
	"welfare/internal/ledger"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
)

// CitizenReader resolves the citizen fields joined into applications.
type CitizenReader interface {
	FindByID(ctx context.Context, id domain.CitizenID) (*citizen.Citizen, error)
}

type pairKey struct {
	citizen domain.CitizenID
	scheme  domain.SchemeID
}

// InMemory keeps match records keyed by ID with a unique pair index.
type InMemory struct {
	mu       sync.RWMutex
	records  map[domain.MatchID]ledger.MatchRecord
	pairs    map[pairKey]domain.MatchID
	citizens CitizenReader
}

func NewInMemory(citizens CitizenReader) *InMemory {
	return &InMemory{
		records:  make(map[domain.MatchID]ledger.MatchRecord),
		pairs:    make(map[pairKey]domain.MatchID),
		citizens: citizens,
	}
}

// CreateIfAbsent inserts rec unless a record for the same pair exists. The
// existing record is never modified.
func (s *InMemory) CreateIfAbsent(_ context.Context, rec *ledger.MatchRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{citizen: rec.CitizenID, scheme: rec.SchemeID}
	if _, ok := s.pairs[key]; ok {
		return false, nil
	}
	s.records[rec.ID] = *rec
	s.pairs[key] = rec.ID
	return true, nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.MatchID) (*ledger.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

// FindForUpdate has no row lock in memory; callers serialize through
// tx.LocalRunner.
func (s *InMemory) FindForUpdate(ctx context.Context, id domain.MatchID) (*ledger.MatchRecord, error) {
	return s.FindByID(ctx, id)
}

func (s *InMemory) FindByPair(_ context.Context, citizenID domain.CitizenID, schemeID domain.SchemeID) (*ledger.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pairs[pairKey{citizen: citizenID, scheme: schemeID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	rec := s.records[id]
	return &rec, nil
}

// UpdateSettlement writes the payment fields. Records already PAID are
// rejected with sentinel.ErrInvalidState.
func (s *InMemory) UpdateSettlement(_ context.Context, rec *ledger.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status == ledger.StatusPaid {
		return sentinel.ErrInvalidState
	}
	current.Status = rec.Status
	current.TransactionID = rec.TransactionID
	current.PaymentDate = rec.PaymentDate
	current.FailureReason = rec.FailureReason
	current.Attempts = rec.Attempts
	current.UpdatedAt = rec.UpdatedAt
	s.records[rec.ID] = current
	return nil
}

func (s *InMemory) ListApplications(ctx context.Context, schemeID domain.SchemeID) ([]ledger.Application, error) {
	s.mu.RLock()
	records := make([]ledger.MatchRecord, 0)
	for _, rec := range s.records {
		if rec.SchemeID == schemeID {
			records = append(records, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	out := make([]ledger.Application, 0, len(records))
	for _, rec := range records {
		app := ledger.Application{Record: rec}
		if s.citizens != nil {
			c, err := s.citizens.FindByID(ctx, rec.CitizenID)
			if err != nil {
				return nil, err
			}
			app.CitizenName = c.Name
			app.Phone = c.Phone
			app.BankAccount = c.BankAccount
			app.IFSC = c.IFSC
		}
		out = append(out, app)
	}
	return out, nil
}

// CountByScheme returns the number of match records for a scheme.
func (s *InMemory) CountByScheme(_ context.Context, schemeID domain.SchemeID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.SchemeID == schemeID {
			n++
		}
	}
	return n, nil
}
