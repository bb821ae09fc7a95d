package declaration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the declaration and its lines. ID, Number and the
	// timestamps are expected to be set by the caller.
	Create(ctx context.Context, d *Declaration) error
	GetByID(ctx context.Context, id uuid.UUID) (*Declaration, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Declaration, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Declaration, int, error)
	// UpdateStatus persists a transition only if the stored status is still
	// from. It reports false when another writer got there first.
	UpdateStatus(ctx context.Context, d *Declaration, from Status) (bool, error)
	CountByStatus(ctx context.Context, from, to *time.Time) (map[Status]int, error)
}
