package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sheetsight/api/internal/model"
)

// ErrNoDataset is returned when the owner has no extracted columns yet.
var ErrNoDataset = errors.New("no dataset for owner")

// saveDatasetScript guards against a stale in-flight job overwriting a
// newer upload: the write only lands when the incoming version is at least
// the stored one.
var saveDatasetScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[2]) or '-1')
if tonumber(ARGV[1]) < cur then
  return 0
end
redis.call('SET', KEYS[2], ARGV[1])
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)

// DatasetStore keeps the latest extracted dataset per owner.
type DatasetStore struct {
	redis *redis.Client
}

func NewDatasetStore(redisClient *redis.Client) *DatasetStore {
	return &DatasetStore{redis: redisClient}
}

func datasetKey(ownerID string) string {
	return fmt.Sprintf("dataset:%s", ownerID)
}

func datasetVersionKey(ownerID string) string {
	return fmt.Sprintf("dataset_version:%s", ownerID)
}

// Save stores the dataset as the owner's current one. It returns false
// without writing when a newer dataset is already stored.
func (s *DatasetStore) Save(ctx context.Context, ds *model.Dataset) (bool, error) {
	data, err := json.Marshal(ds)
	if err != nil {
		return false, fmt.Errorf("failed to marshal dataset: %w", err)
	}

	keys := []string{datasetKey(ds.OwnerID), datasetVersionKey(ds.OwnerID)}
	stored, err := saveDatasetScript.Run(ctx, s.redis, keys, ds.Version, string(data)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to save dataset: %w", err)
	}
	return stored == 1, nil
}

// Get returns the owner's current dataset, or ErrNoDataset.
func (s *DatasetStore) Get(ctx context.Context, ownerID string) (*model.Dataset, error) {
	data, err := s.redis.Get(ctx, datasetKey(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoDataset
		}
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var ds model.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("corrupt dataset record: %w", err)
	}
	return &ds, nil
}
