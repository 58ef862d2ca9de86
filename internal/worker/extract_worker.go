package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sheetsight/api/internal/extract"
	"github.com/sheetsight/api/internal/model"
	"github.com/sheetsight/api/internal/service"
	"github.com/sheetsight/api/internal/store"
	"github.com/sheetsight/api/internal/websocket"
)

// ExtractWorker processes file-extraction jobs pulled from the queue. The
// asynq server's concurrency setting bounds how many of these run at once;
// everything beyond that waits in pending.
type ExtractWorker struct {
	uploadService *service.UploadService
	jobs          *store.JobStore
	datasets      *store.DatasetStore
	hub           *websocket.Hub
	timeout       time.Duration
}

func NewExtractWorker(uploadService *service.UploadService, jobs *store.JobStore, datasets *store.DatasetStore, hub *websocket.Hub, timeout time.Duration) *ExtractWorker {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &ExtractWorker{
		uploadService: uploadService,
		jobs:          jobs,
		datasets:      datasets,
		hub:           hub,
		timeout:       timeout,
	}
}

// ProcessTask claims the job, parses the stashed file, and drives the job
// to a terminal state. It is the only mutator of the job after the claim.
func (w *ExtractWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.ExtractTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := payload.JobID
	log.Printf("Starting extraction job: %s", jobID)

	// The claim: atomic pending -> running. Losing it means another worker
	// or a defect already owns the job; never touch it again.
	if err := w.jobs.Transition(ctx, jobID, model.JobStatusRunning); err != nil {
		return fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	w.broadcast(ctx, jobID)

	data, err := w.uploadService.TakeFile(ctx, payload.FileKey)
	if err != nil {
		if errors.Is(err, service.ErrFileGone) {
			w.failJob(ctx, jobID, "Uploaded file expired before processing started.")
			return nil
		}
		w.failJob(ctx, jobID, "Failed to read uploaded file.")
		return err
	}

	columns, err := w.extractWithTimeout(ctx, data)
	if err != nil {
		// Malformed input is not transient; the job fails for good.
		w.failJob(ctx, jobID, extractionMessage(err))
		return nil
	}

	job, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to re-read job %s: %w", jobID, err)
	}

	ds := &model.Dataset{
		OwnerID: payload.OwnerID,
		JobID:   jobID,
		Columns: columns,
		Version: job.CreatedAt.UnixNano(),
	}
	stored, err := w.datasets.Save(ctx, ds)
	if err != nil {
		w.failJob(ctx, jobID, "Failed to store extracted columns.")
		return err
	}
	if !stored {
		log.Printf("Job %s finished after a newer upload; dataset kept as-is", jobID)
	}

	if err := w.jobs.Transition(ctx, jobID, model.JobStatusSuccess, store.WithColumns(ds.ColumnNames())); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	w.broadcast(ctx, jobID)

	log.Printf("Extraction job %s completed with %d columns", jobID, len(columns))
	return nil
}

// extractWithTimeout runs the parser under a deadline so a pathological
// file cannot pin a worker slot forever.
func (w *ExtractWorker) extractWithTimeout(ctx context.Context, data []byte) ([]model.Column, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	type result struct {
		columns []model.Column
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		columns, err := extract.Columns(data)
		ch <- result{columns, err}
	}()

	select {
	case res := <-ch:
		return res.columns, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("extraction timed out: %w", ctx.Err())
	}
}

func (w *ExtractWorker) failJob(ctx context.Context, jobID, msg string) {
	if err := w.jobs.Transition(ctx, jobID, model.JobStatusFailure, store.WithError(msg)); err != nil {
		log.Printf("Failed to mark job %s as failed: %v", jobID, err)
		return
	}
	w.broadcast(ctx, jobID)
}

func (w *ExtractWorker) broadcast(ctx context.Context, jobID string) {
	if w.hub == nil {
		return
	}
	job, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		return
	}
	w.hub.BroadcastState(job.ID, job.Status, job.Columns, job.Error)
}

func extractionMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrEmptyFile):
		return "The uploaded file is empty."
	case errors.Is(err, extract.ErrNoNumericColumns):
		return "No numeric columns were found in the uploaded file."
	default:
		return fmt.Sprintf("Error reading the file: %v", err)
	}
}
