package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"welfare/internal/citizen"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
)

// InMemory is a map-backed citizen store for tests and the memory backend.
type InMemory struct {
	mu       sync.RWMutex
	citizens map[domain.CitizenID]citizen.Citizen
	phones   map[string]domain.CitizenID
	hashes   map[domain.CitizenID]string
}

func NewInMemory() *InMemory {
	return &InMemory{
		citizens: make(map[domain.CitizenID]citizen.Citizen),
		phones:   make(map[string]domain.CitizenID),
		hashes:   make(map[domain.CitizenID]string),
	}
}

func (s *InMemory) Create(_ context.Context, c *citizen.Citizen, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.phones[c.Phone]; ok {
		return sentinel.ErrConflict
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.citizens[c.ID] = *c
	s.phones[c.Phone] = c.ID
	s.hashes[c.ID] = passwordHash
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.CitizenID) (*citizen.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.citizens[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemory) FindByPhone(_ context.Context, phone string) (*citizen.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.phones[phone]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := s.citizens[id]
	return &c, nil
}

// ListCandidates returns beneficiaries ordered by ID bytes, matching the
// Postgres uuid ordering used for keyset paging.
func (s *InMemory) ListCandidates(_ context.Context, q citizen.CandidateQuery) ([]citizen.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]citizen.Citizen, 0)
	for _, c := range s.citizens {
		if c.Role != citizen.RoleBeneficiary {
			continue
		}
		if q.State != "" && c.Profile.State != q.State {
			continue
		}
		if !q.After.IsNil() && bytes.Compare(c.ID[:], q.After[:]) <= 0 {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
