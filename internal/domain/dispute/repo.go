package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dispute, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Dispute, error)
	List(ctx context.Context, f Filter, limit int) ([]*Dispute, error)
	ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]*Dispute, error)
	// Update persists status and resolution fields only if the stored status
	// is still from.
	Update(ctx context.Context, d *Dispute, from Status) (bool, error)
	// Stats counts disputes opened in [from, to). Nil bounds are open.
	Stats(ctx context.Context, from, to *time.Time) (*Stats, error)
}
