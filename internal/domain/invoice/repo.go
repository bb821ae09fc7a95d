package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the invoice and its lines.
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetForUpdate locks the invoice row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// List applies f. today decides which invoices count as overdue.
	List(ctx context.Context, f Filter, today time.Time, limit, offset int) ([]*Invoice, int, error)
	UpdateBalance(ctx context.Context, inv *Invoice) error
	AddPayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	Totals(ctx context.Context, from, to *time.Time, today time.Time) (*Totals, error)
}
