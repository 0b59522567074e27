package session

import (
	"context"
	"sync"
	"time"
)

// memoryStore implements Store using an in-memory map with optimistic locking.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

func (s *memoryStore) Create(ctx context.Context, data *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	stored := *data
	s.sessions[data.ID] = &stored
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.sessions[id]
	if !exists {
		return nil, nil
	}
	copied := *data
	return &copied, nil
}

func (s *memoryStore) Update(ctx context.Context, data *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sessions[data.ID]
	if !exists {
		return ErrNotFound
	}

	if stored.Version != data.Version {
		return ErrVersionConflict
	}

	data.Version++
	data.UpdatedAt = time.Now()

	copied := *data
	s.sessions[data.ID] = &copied
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	return nil
}
