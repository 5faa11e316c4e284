package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

const defaultRedisPrefix = "yecs:"

// Redis keeps every record as JSON in one hash and indexes each user's records
// in a sorted set scored by creation time in microseconds.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Backend() string { return "redis" }

func (r *Redis) recordsKey() string { return r.prefix + "score_records" }

func (r *Redis) userKey(userID string) string { return r.prefix + "user_scores:" + userID }

// Append writes the record and its index entry in one MULTI/EXEC. NX variants keep
// a retried append from overwriting an earlier write.
func (r *Redis) Append(ctx context.Context, rec scoring.ScoreRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode score record: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, r.recordsKey(), rec.ScoreID, payload)
		pipe.ZAddNX(ctx, r.userKey(rec.UserID), redis.Z{
			Score:  float64(rec.CreatedAt.UnixMicro()),
			Member: rec.ScoreID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append score record: %w", err)
	}
	return nil
}

func (r *Redis) ReadUser(ctx context.Context, userID string) ([]scoring.ScoreRecord, error) {
	ids, err := r.client.ZRevRange(ctx, r.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user index: %w", err)
	}
	if len(ids) == 0 {
		return []scoring.ScoreRecord{}, nil
	}

	values, err := r.client.HMGet(ctx, r.recordsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read score records: %w", err)
	}

	out := make([]scoring.ScoreRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("score record %s indexed but missing", ids[i])
		}
		rec, err := decodeRecord(s)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	// the index has microsecond resolution; restore exact order
	sortNewestFirst(out)
	return out, nil
}

func (r *Redis) ReadAll(ctx context.Context) ([]scoring.ScoreRecord, error) {
	all, err := r.client.HGetAll(ctx, r.recordsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read score records: %w", err)
	}

	out := make([]scoring.ScoreRecord, 0, len(all))
	for _, s := range all {
		rec, err := decodeRecord(s)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(s string) (scoring.ScoreRecord, error) {
	var rec scoring.ScoreRecord
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return scoring.ScoreRecord{}, fmt.Errorf("failed to decode score record: %w", err)
	}
	return rec, nil
}
