package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/food-voucher/food_voucher/internal/verification"
)

// ErrRunNotFound is returned for unknown or expired run ids.
var ErrRunNotFound = errors.New("verification run not found")

// Snapshot is the externally visible view of a run.
type Snapshot struct {
	RunID     string               `json:"run_id"`
	ProfileID string               `json:"profile_id,omitempty"`
	CardID    string               `json:"card_id,omitempty"`
	Locale    string               `json:"locale"`
	Running   bool                 `json:"running"`
	Cancelled bool                 `json:"cancelled,omitempty"`
	State     verification.State   `json:"state"`
	Result    *verification.Result `json:"result,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// RunStore keeps snapshots for status queries. Entries expire after the
// store's TTL.
type RunStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, runID string) (Snapshot, error)
}

// MemoryStore keeps snapshots in process. Expired entries are hidden by Get
// and dropped by Sweep.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

// NewMemoryStore builds a memory store with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// Save stores snap and refreshes its expiry.
func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[snap.RunID] = memoryEntry{snap: snap, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Get returns the snapshot of runID.
func (s *MemoryStore) Get(_ context.Context, runID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[runID]
	if !ok || !s.now().Before(entry.expiresAt) {
		return Snapshot{}, ErrRunNotFound
	}
	return entry.snap, nil
}

// Sweep drops expired entries and reports how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

const runKeyPrefix = "verification:run:"

// RedisStore keeps snapshots as JSON strings with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Save stores snap and refreshes its expiry.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, runKeyPrefix+snap.RunID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save run %s: %w", snap.RunID, err)
	}
	return nil
}

// Get returns the snapshot of runID.
func (s *RedisStore) Get(ctx context.Context, runID string) (Snapshot, error) {
	raw, err := s.client.Get(ctx, runKeyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrRunNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return snap, nil
}
