package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Transaction, int, error)
	// Each streams every transaction matching f, oldest first.
	Each(ctx context.Context, f Filter, fn func(*Transaction) error) error
	// UpdateStatus persists a status change only if the stored status is
	// still from.
	UpdateStatus(ctx context.Context, t *Transaction, from Status) (bool, error)
	ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]*Transaction, error)
	Summarize(ctx context.Context, from, to *time.Time) ([]Summary, error)
}
