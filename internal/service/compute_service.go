package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sheetsight/api/internal/compute"
	"github.com/sheetsight/api/internal/model"
	"github.com/sheetsight/api/internal/query"
	"github.com/sheetsight/api/internal/store"
)

var (
	// ErrNoData means the owner has no successfully extracted dataset.
	ErrNoData = errors.New("no data uploaded for this user")
	// ErrNoSuchColumn means the dataset has no column by that name.
	ErrNoSuchColumn = errors.New("column not found in uploaded data")
)

// Generator produces a candidate query for a column + operation.
type Generator interface {
	Generate(ctx context.Context, ownerID, column, operation string) (string, error)
}

// Executor runs an accepted statement over the dataset.
type Executor interface {
	Execute(ctx context.Context, ds *model.Dataset, stmt string) (float64, error)
}

// ComputeService drives a compute request through the three-tier
// resolution: generated-and-executed, generated-but-shown-as-is, or
// deterministic fallback. The caller always gets either a number or an
// explicit explanation of why there is none.
type ComputeService struct {
	datasets  *store.DatasetStore
	records   *store.ComputationStore
	generator Generator
	engine    Executor
}

func NewComputeService(datasets *store.DatasetStore, records *store.ComputationStore, generator Generator, engine Executor) *ComputeService {
	return &ComputeService{
		datasets:  datasets,
		records:   records,
		generator: generator,
		engine:    engine,
	}
}

// Compute resolves the owner's dataset, obtains and vets a candidate
// query, and produces a persisted ComputationRecord. Only user-correctable
// failures (no data, unknown column, unknown operation) come back as
// errors; every other outcome is a record.
func (s *ComputeService) Compute(ctx context.Context, ownerID, column, operation string) (*model.ComputationRecord, error) {
	ds, err := s.datasets.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNoDataset) {
			return nil, ErrNoData
		}
		return nil, err
	}
	col := ds.Column(column)
	if col == nil {
		return nil, ErrNoSuchColumn
	}

	rec := &model.ComputationRecord{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Column:    column,
		Operation: operation,
		Verdict:   "none",
		Source:    model.SourceNone,
		CreatedAt: time.Now(),
	}

	candidate, genErr := s.generator.Generate(ctx, ownerID, column, operation)
	switch {
	case genErr == nil:
		rec.Query = &candidate
		verdict := query.Validate(candidate, query.NewSchema(ds.ColumnNames()))
		rec.Verdict = verdict.String()

		if verdict.Accepted {
			value, execErr := s.engine.Execute(ctx, ds, candidate)
			if execErr == nil {
				rec.Result = &value
				rec.Source = model.SourceGenerated
				rec.Status = model.ComputeStatusExecuted
				return s.persist(ctx, rec)
			}

			var incompat *query.IncompatibilityError
			if errors.As(execErr, &incompat) {
				// Accepted by the allow-list, refused by the engine:
				// show the query as-is, no silent fallback.
				rec.Status = model.ComputeStatusError
				return s.persist(ctx, rec)
			}
			return nil, fmt.Errorf("engine failure: %w", execErr)
		}
		// Rejected: the candidate text rides along into the fallback.

	case errors.Is(genErr, query.ErrGenerationUnavailable),
		errors.Is(genErr, query.ErrGenerationEmpty):
		// Expected, non-fatal; straight to the fallback.

	default:
		return nil, genErr
	}

	value, fbErr := compute.Fallback(col.Values, operation)
	if fbErr != nil {
		if errors.Is(fbErr, compute.ErrUnknownOperation) {
			return nil, fbErr
		}
		if rec.Query != nil {
			// Nothing computable, but a rejected candidate exists: show it.
			rec.Status = model.ComputeStatusRejectedShown
			return s.persist(ctx, rec)
		}
		return nil, fbErr
	}

	rec.Result = &value
	rec.Source = model.SourceFallback
	rec.Status = model.ComputeStatusFallback
	return s.persist(ctx, rec)
}

// History returns the owner's past computation records, newest first.
func (s *ComputeService) History(ctx context.Context, ownerID string) ([]model.ComputationRecord, error) {
	return s.records.History(ctx, ownerID)
}

func (s *ComputeService) persist(ctx context.Context, rec *model.ComputationRecord) (*model.ComputationRecord, error) {
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist record: %w", err)
	}
	return rec, nil
}
