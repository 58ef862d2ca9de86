package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/sheetsight/api/internal/extract"
	"github.com/sheetsight/api/internal/model"
	"github.com/sheetsight/api/internal/store"
)

// TaskTypeExtract is the asynq task type for background file extraction.
const TaskTypeExtract = "extract:file"

// fileTTL bounds how long stashed upload bytes wait for a worker slot.
const fileTTL = time.Hour

// ErrFileGone means the stashed upload expired before a worker claimed it.
var ErrFileGone = errors.New("uploaded file no longer available")

// ExtractTaskPayload is the task envelope handed to the worker pool.
type ExtractTaskPayload struct {
	JobID   string `json:"jobId"`
	OwnerID string `json:"ownerId"`
	FileKey string `json:"fileKey"`
}

// TaskEnqueuer is the slice of asynq.Client the service needs.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// UploadService turns uploads into trackable background jobs, or extracts
// inline in the simplified synchronous mode. Both modes end in the same
// place: the owner's dataset in the DatasetStore.
type UploadService struct {
	redis    *redis.Client
	enqueuer TaskEnqueuer
	jobs     *store.JobStore
	datasets *store.DatasetStore
}

func NewUploadService(redisClient *redis.Client, enqueuer TaskEnqueuer, jobs *store.JobStore, datasets *store.DatasetStore) *UploadService {
	return &UploadService{
		redis:    redisClient,
		enqueuer: enqueuer,
		jobs:     jobs,
		datasets: datasets,
	}
}

func fileKey(jobID string) string {
	return fmt.Sprintf("upload:file:%s", jobID)
}

// Enqueue creates a pending job for the file and hands it to the worker
// pool, returning immediately. Malformed content is discovered by the
// worker, not here.
func (s *UploadService) Enqueue(ctx context.Context, ownerID string, data []byte) (*model.Job, error) {
	job, err := s.jobs.Create(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.redis.Set(ctx, fileKey(job.ID), data, fileTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to stash upload: %w", err)
	}

	payload, err := json.Marshal(ExtractTaskPayload{
		JobID:   job.ID,
		OwnerID: ownerID,
		FileKey: fileKey(job.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	// Malformed input is not transient, so the task never retries; the
	// failure lands on the job record instead.
	_, err = s.enqueuer.Enqueue(asynq.NewTask(TaskTypeExtract, payload),
		asynq.Queue("extract"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return job, nil
}

// ExtractSync parses the file inline and stores the dataset without
// wrapping a job around the call.
func (s *UploadService) ExtractSync(ctx context.Context, ownerID string, data []byte) ([]string, error) {
	columns, err := extract.Columns(data)
	if err != nil {
		return nil, err
	}

	ds := &model.Dataset{
		OwnerID: ownerID,
		Columns: columns,
		Version: time.Now().UnixNano(),
	}
	if _, err := s.datasets.Save(ctx, ds); err != nil {
		return nil, err
	}
	return ds.ColumnNames(), nil
}

// TakeFile fetches and deletes the stashed upload bytes for a claimed job.
func (s *UploadService) TakeFile(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrFileGone
		}
		return nil, fmt.Errorf("failed to fetch upload: %w", err)
	}
	s.redis.Del(ctx, key)
	return data, nil
}

// Status returns the poller-facing view of the job. Jobs are only visible
// to their owner.
func (s *UploadService) Status(ctx context.Context, ownerID, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, store.ErrJobNotFound
	}

	return &model.JobStatusResponse{
		JobID:   job.ID,
		State:   job.Status,
		Columns: job.Columns,
		Error:   job.Error,
	}, nil
}
