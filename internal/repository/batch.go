// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"fmt"

	"localpulse/internal/models"
	"localpulse/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// DefaultBatchMaxOps mirrors the document-store limit on writes per batch.
const DefaultBatchMaxOps = 500

// ErrBatchFull is returned by Batch.Add once the op limit is reached.
var ErrBatchFull = errors.New("batch operation limit reached")

type batchOp struct {
	name  string
	apply func(tx *gorm.DB) error
}

// Batch collects writes that commit together or not at all.
type Batch struct {
	db     *gorm.DB
	maxOps int
	ops    []batchOp
}

// Store hands out batches bound to one database and op limit.
type Store struct {
	db     *gorm.DB
	maxOps int
}

// NewStore creates a batch factory. maxOps <= 0 uses DefaultBatchMaxOps.
func NewStore(db *gorm.DB, maxOps int) *Store {
	if maxOps <= 0 {
		maxOps = DefaultBatchMaxOps
	}
	return &Store{db: db, maxOps: maxOps}
}

// NewBatch starts an empty batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{db: s.db, maxOps: s.maxOps}
}

// MaxOps returns the per-batch write limit.
func (s *Store) MaxOps() int {
	return s.maxOps
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Add stages a write. It fails with ErrBatchFull instead of growing past the limit.
func (b *Batch) Add(name string, apply func(tx *gorm.DB) error) error {
	if len(b.ops) >= b.maxOps {
		return fmt.Errorf("%w (%d)", ErrBatchFull, b.maxOps)
	}
	b.ops = append(b.ops, batchOp{name: name, apply: apply})
	return nil
}

// Len returns the number of staged writes.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Remaining returns how many more writes fit.
func (b *Batch) Remaining() int {
	return b.maxOps - len(b.ops)
}

// Commit applies every staged write in one transaction. On failure nothing is
// applied: duplicate keys surface as a conflict, AppErrors raised by an op
// pass through, and anything else is retryable.
func (b *Batch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range b.ops {
			if err := op.apply(tx); err != nil {
				return fmt.Errorf("%s: %w", op.name, err)
			}
		}
		return nil
	})
	if err == nil {
		observability.BatchCommits.WithLabelValues("ok").Inc()
		observability.BatchSize.Observe(float64(len(b.ops)))
		return nil
	}

	observability.BatchCommits.WithLabelValues("rejected").Inc()
	var appErr *models.AppError
	switch {
	case IsDuplicateKey(err):
		return &models.AppError{Code: models.CodeConflict, Message: "Record already exists", Err: err}
	case errors.As(err, &appErr):
		return err
	default:
		return models.NewRetryableError(err)
	}
}

// IsDuplicateKey reports a unique-constraint violation from either the
// translated gorm error or the raw postgres error.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}
