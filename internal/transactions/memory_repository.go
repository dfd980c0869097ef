package transactions

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	byCard map[string][]Transaction
}

// NewMemoryRepository constructs an in-memory repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{byCard: make(map[string][]Transaction)}
}

func (r *memoryRepository) Create(_ context.Context, tx Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCard[tx.CardID] = append(r.byCard[tx.CardID], tx)
	return nil
}

func (r *memoryRepository) ListByCard(_ context.Context, cardID string) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]Transaction(nil), r.byCard[cardID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
