package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sheetsight/api/internal/model"
)

// IncompatibilityError marks a validated query the engine still refused at
// run time. Per the fault-tolerance contract it is surfaced to the caller
// with the query text, never silently swapped for a fallback value.
type IncompatibilityError struct {
	Query string
	Err   error
}

func (e *IncompatibilityError) Error() string {
	return fmt.Sprintf("query not executable against this engine: %v", e.Err)
}

func (e *IncompatibilityError) Unwrap() error {
	return e.Err
}

// Engine executes accepted queries against an in-memory SQLite database
// populated with the caller's dataset, one value per row, mirroring the
// uploaded_values layout the generator is prompted with.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Execute loads the dataset and runs the statement, expecting a single
// numeric scalar back. Engine-reported failures come back as
// *IncompatibilityError.
func (e *Engine) Execute(ctx context.Context, ds *model.Dataset, stmt string) (float64, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return 0, fmt.Errorf("failed to open engine: %w", err)
	}
	defer db.Close()
	// An in-memory database exists per connection; a second pooled
	// connection would see empty tables.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE `+Table+` (user_id TEXT NOT NULL, column_name TEXT NOT NULL, value REAL NOT NULL)`,
	); err != nil {
		return 0, fmt.Errorf("failed to prepare engine: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to load dataset: %w", err)
	}
	insert, err := tx.PrepareContext(ctx, `INSERT INTO `+Table+` (user_id, column_name, value) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to load dataset: %w", err)
	}
	for _, col := range ds.Columns {
		for _, v := range col.Values {
			if _, err := insert.ExecContext(ctx, ds.OwnerID, col.Name, v); err != nil {
				insert.Close()
				tx.Rollback()
				return 0, fmt.Errorf("failed to load dataset: %w", err)
			}
		}
	}
	insert.Close()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to load dataset: %w", err)
	}

	var result sql.NullFloat64
	if err := db.QueryRowContext(ctx, stmt).Scan(&result); err != nil {
		return 0, &IncompatibilityError{Query: stmt, Err: err}
	}
	if !result.Valid {
		return 0, &IncompatibilityError{Query: stmt, Err: errors.New("query produced no scalar result")}
	}
	return result.Float64, nil
}
