package store

import (
	"context"
	"sync"
	"time"

	"welfare/internal/scheme"
	"welfare/pkg/domain"
	"welfare/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	schemes map[domain.SchemeID]scheme.Scheme
}

func NewInMemory() *InMemory {
	return &InMemory{schemes: make(map[domain.SchemeID]scheme.Scheme)}
}

func (s *InMemory) Create(_ context.Context, sc *scheme.Scheme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schemes[sc.ID]; ok {
		return sentinel.ErrConflict
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now()
	}
	s.schemes[sc.ID] = *sc
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.SchemeID) (*scheme.Scheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schemes[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &sc, nil
}
