package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sheetsight/api/internal/model"
)

// historyLimit bounds the per-owner audit trail.
const historyLimit = 50

// ComputationStore persists computation records per owner: the latest one
// under its own key (idempotent replay) plus a bounded history list.
type ComputationStore struct {
	redis *redis.Client
}

func NewComputationStore(redisClient *redis.Client) *ComputationStore {
	return &ComputationStore{redis: redisClient}
}

func latestKey(ownerID string) string {
	return fmt.Sprintf("computation:%s", ownerID)
}

func historyKey(ownerID string) string {
	return fmt.Sprintf("computations:%s", ownerID)
}

// Save writes the record as the owner's latest and prepends it to the
// history list.
func (s *ComputationStore) Save(ctx context.Context, rec *model.ComputationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, latestKey(rec.OwnerID), data, 0)
	pipe.LPush(ctx, historyKey(rec.OwnerID), data)
	pipe.LTrim(ctx, historyKey(rec.OwnerID), 0, historyLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Latest returns the owner's most recent record, or nil when none exists.
func (s *ComputationStore) Latest(ctx context.Context, ownerID string) (*model.ComputationRecord, error) {
	data, err := s.redis.Get(ctx, latestKey(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec model.ComputationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt computation record: %w", err)
	}
	return &rec, nil
}

// History returns up to historyLimit records, newest first.
func (s *ComputationStore) History(ctx context.Context, ownerID string) ([]model.ComputationRecord, error) {
	items, err := s.redis.LRange(ctx, historyKey(ownerID), 0, historyLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	records := make([]model.ComputationRecord, 0, len(items))
	for _, item := range items {
		var rec model.ComputationRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("corrupt computation record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
