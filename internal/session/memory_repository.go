package session

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	byPhone  map[string]string
}

// NewMemoryRepository builds an in-memory profile store.
func NewMemoryRepository() Repository {
	return &memoryRepository{profiles: make(map[string]Profile), byPhone: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPhone[p.Phone]; exists {
		return errors.New("profile exists")
	}
	r.profiles[p.ID] = p
	r.byPhone[p.Phone] = p.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return r.profiles[id], nil
}

func (r *memoryRepository) Update(_ context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.ID]; !ok {
		return ErrNotFound
	}
	r.profiles[p.ID] = p
	return nil
}
