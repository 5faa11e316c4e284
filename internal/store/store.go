package store

import (
	"context"
	"sort"

	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

// ScoreHistoryStore is an append-only ledger of score records. There is no
// update or delete. Append must be atomic with respect to readers.
type ScoreHistoryStore interface {
	Append(ctx context.Context, rec scoring.ScoreRecord) error
	// ReadUser returns the user's records, most recent first.
	ReadUser(ctx context.Context, userID string) ([]scoring.ScoreRecord, error)
	// ReadAll returns every record in no particular order.
	ReadAll(ctx context.Context) ([]scoring.ScoreRecord, error)
}

// Backend names a store implementation for logs and metrics.
type Backend interface {
	Backend() string
}

// sortNewestFirst orders by created_at descending, breaking ties by score id
// descending so the order is total.
func sortNewestFirst(recs []scoring.ScoreRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ScoreID > recs[j].ScoreID
	})
}
