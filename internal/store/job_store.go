package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sheetsight/api/internal/model"
)

var (
	// ErrJobNotFound is returned when the job id is unknown (or expired).
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when the requested transition is
	// not legal from the job's current state. Racing callers on the same
	// source state observe it on all but one of them.
	ErrInvalidTransition = errors.New("invalid job transition")
)

const jobTTL = 24 * time.Hour

// transitionScript compares the stored status against the expected source
// state and applies the update only on a match, so a transition is a
// single atomic compare-and-set regardless of how many workers race on it.
var transitionScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
  return 'missing'
end
if cur ~= ARGV[1] then
  return cur
end
for i = 2, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
return 'ok'
`)

// JobStore tracks job records in Redis, one hash per job.
type JobStore struct {
	redis *redis.Client
}

func NewJobStore(redisClient *redis.Client) *JobStore {
	return &JobStore{redis: redisClient}
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// Create inserts a new pending job for the owner and returns it.
func (s *JobStore) Create(ctx context.Context, ownerID string) (*model.Job, error) {
	job := &model.Job{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Status:    model.JobStatusPending,
		CreatedAt: time.Now(),
	}

	key := jobKey(job.ID)
	err := s.redis.HSet(ctx, key, map[string]interface{}{
		"id":         job.ID,
		"owner_id":   job.OwnerID,
		"status":     string(job.Status),
		"created_at": job.CreatedAt.UnixNano(),
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.redis.Expire(ctx, key, jobTTL)

	return job, nil
}

// Get returns the job by id, or ErrJobNotFound.
func (s *JobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	fields, err := s.redis.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return jobFromFields(fields)
}

// TransitionOption attaches payload fields to a state transition.
type TransitionOption func(map[string]string)

// WithColumns records the extracted column names on a success transition.
func WithColumns(columns []string) TransitionOption {
	return func(fields map[string]string) {
		data, _ := json.Marshal(columns)
		fields["columns"] = string(data)
	}
}

// WithError records the failure message on a failure transition.
func WithError(msg string) TransitionOption {
	return func(fields map[string]string) {
		fields["error"] = msg
	}
}

// Transition atomically moves the job to the given state. It fails with
// ErrJobNotFound for unknown ids and ErrInvalidTransition when the job is
// not in the single legal source state for the target, including the case
// where a concurrent caller won the same transition first.
func (s *JobStore) Transition(ctx context.Context, jobID string, to model.JobStatus, opts ...TransitionOption) error {
	from, ok := model.TransitionSource(to)
	if !ok {
		return fmt.Errorf("%w: no path to %s", ErrInvalidTransition, to)
	}

	fields := map[string]string{"status": string(to)}
	now := time.Now()
	switch to {
	case model.JobStatusRunning:
		fields["started_at"] = fmt.Sprintf("%d", now.UnixNano())
	case model.JobStatusSuccess, model.JobStatusFailure:
		fields["completed_at"] = fmt.Sprintf("%d", now.UnixNano())
	}
	for _, opt := range opts {
		opt(fields)
	}

	args := []interface{}{string(from)}
	for k, v := range fields {
		args = append(args, k, v)
	}

	res, err := transitionScript.Run(ctx, s.redis, []string{jobKey(jobID)}, args...).Text()
	if err != nil {
		return fmt.Errorf("failed to transition job: %w", err)
	}

	switch res {
	case "ok":
		return nil
	case "missing":
		return ErrJobNotFound
	default:
		return fmt.Errorf("%w: %s -> %s (job is %s)", ErrInvalidTransition, from, to, res)
	}
}

func jobFromFields(fields map[string]string) (*model.Job, error) {
	job := &model.Job{
		ID:      fields["id"],
		OwnerID: fields["owner_id"],
		Status:  model.JobStatus(fields["status"]),
	}

	created, err := parseNanoTime(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt job record: %w", err)
	}
	job.CreatedAt = created

	if v, ok := fields["started_at"]; ok {
		t, err := parseNanoTime(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt job record: %w", err)
		}
		job.StartedAt = &t
	}
	if v, ok := fields["completed_at"]; ok {
		t, err := parseNanoTime(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt job record: %w", err)
		}
		job.CompletedAt = &t
	}
	if v, ok := fields["columns"]; ok {
		if err := json.Unmarshal([]byte(v), &job.Columns); err != nil {
			return nil, fmt.Errorf("corrupt job record: %w", err)
		}
	}
	if v, ok := fields["error"]; ok {
		job.Error = &v
	}

	return job, nil
}

func parseNanoTime(v string) (time.Time, error) {
	nanos, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos), nil
}
