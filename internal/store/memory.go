package store

import (
	"context"
	"sync"

	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

// Memory keeps the ledger in process. Used for tests, dry runs and the memory backend.
type Memory struct {
	mu      sync.RWMutex
	records []scoring.ScoreRecord
	byUser  map[string][]int
	ids     map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		byUser: make(map[string][]int),
		ids:    make(map[string]struct{}),
	}
}

func (m *Memory) Backend() string { return "memory" }

// Append ignores a record whose score id is already stored.
func (m *Memory) Append(ctx context.Context, rec scoring.ScoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ids[rec.ScoreID]; ok {
		return nil
	}
	m.ids[rec.ScoreID] = struct{}{}
	m.records = append(m.records, rec)
	m.byUser[rec.UserID] = append(m.byUser[rec.UserID], len(m.records)-1)
	return nil
}

func (m *Memory) ReadUser(ctx context.Context, userID string) ([]scoring.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	idx := m.byUser[userID]
	out := make([]scoring.ScoreRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.records[i])
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) ReadAll(ctx context.Context) ([]scoring.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]scoring.ScoreRecord(nil), m.records...), nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
