package store

import (
	"context"
	"sort"
	"sync"

	"welfare/internal/notification"
	"welfare/pkg/domain"
)

type InMemory struct {
	mu            sync.RWMutex
	notifications []notification.Notification
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Create(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

// ListByCitizen returns the citizen's notifications, newest first.
func (s *InMemory) ListByCitizen(_ context.Context, citizenID domain.CitizenID) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]notification.Notification, 0)
	for _, n := range s.notifications {
		if n.CitizenID == citizenID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications)
}
