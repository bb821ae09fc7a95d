package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/internal/platform/metrics"
	"github.com/claimsnet/claims/internal/platform/websocket"
	"github.com/claimsnet/claims/pkg/pagination"
)

type Service struct {
	repo      Repository
	tx        db.TxRunner
	publisher websocket.EventPublisher
	dueDays   int
	now       func() time.Time
}

// NewService builds the invoice store. dueDays is the default payment term
// applied when an invoice has no due date.
func NewService(repo Repository, tx db.TxRunner, publisher websocket.EventPublisher, dueDays int) *Service {
	if publisher == nil {
		publisher = websocket.NopPublisher{}
	}
	return &Service{repo: repo, tx: tx, publisher: publisher, dueDays: dueDays, now: time.Now}
}

func (s *Service) Create(ctx context.Context, inv *Invoice) error {
	if strings.TrimSpace(inv.BeneficiaryID) == "" {
		return apperr.Validation("beneficiaryId", "is required")
	}
	if len(inv.Lines) == 0 {
		return apperr.Validation("lines", "at least one line is required")
	}
	for i, l := range inv.Lines {
		if strings.TrimSpace(l.Label) == "" {
			return apperr.Validation(fmt.Sprintf("lines[%d].label", i), "is required")
		}
		if !l.Quantity.IsPositive() {
			return apperr.Validation(fmt.Sprintf("lines[%d].quantity", i), "must be greater than zero")
		}
		if l.UnitPrice.IsNegative() {
			return apperr.Validation(fmt.Sprintf("lines[%d].unitPrice", i), "must not be negative")
		}
	}

	now := s.now().UTC()
	if inv.IssueDate.IsZero() {
		inv.IssueDate = now
	}
	inv.IssueDate = truncateDay(inv.IssueDate)
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.AddDate(0, 0, s.dueDays)
	}
	inv.DueDate = truncateDay(inv.DueDate)
	if inv.DueDate.Before(inv.IssueDate) {
		return apperr.Validation("dueDate", "must not be before the issue date")
	}

	inv.ComputeTotals()
	inv.ID = uuid.New()
	inv.Number = NewNumber(now, inv.ID)
	inv.CreatedAt = now
	inv.UpdatedAt = now

	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, inv)
	}); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	inv.Decorate(now)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Decorate(s.now())
	return inv, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Invoice, int, error) {
	if f.Status != "" && f.Status != StatusOverdue && !f.Status.Valid() {
		return nil, 0, apperr.Validation("statut", "unknown status %q", f.Status)
	}
	p := pagination.New(f.Page, f.Limit)
	today := s.now()
	items, total, err := s.repo.List(ctx, f, truncateDay(today), p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	for _, inv := range items {
		inv.Decorate(today)
	}
	return items, total, nil
}

// RecordPayment settles part or all of an invoice. The invoice row stays
// locked from the balance check until the new balance is written.
func (s *Service) RecordPayment(ctx context.Context, invoiceID uuid.UUID, p *Payment) (*Invoice, error) {
	if !p.Amount.IsPositive() {
		return nil, apperr.Validation("amount", "must be greater than zero")
	}
	if !p.Method.Valid() {
		return nil, apperr.Validation("method", "unknown payment method %q", p.Method)
	}

	var out *Invoice
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if p.Amount.GreaterThan(inv.AmountRemaining) {
			return apperr.Validation("amount", "exceeds the remaining balance of %s", inv.AmountRemaining)
		}

		now := s.now().UTC()
		p.ID = uuid.New()
		p.InvoiceID = inv.ID
		p.CreatedAt = now
		if p.PaidAt.IsZero() {
			p.PaidAt = now
		}
		if err := s.repo.AddPayment(ctx, p); err != nil {
			return err
		}

		inv.ApplyPayment(p.Amount)
		inv.UpdatedAt = now
		if err := s.repo.UpdateBalance(ctx, inv); err != nil {
			return fmt.Errorf("update invoice balance: %w", err)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Decorate(s.now())
	metrics.WorkflowTransitions.WithLabelValues("invoice", string(out.Status)).Inc()
	log.Info().Str("invoice", out.Number).Str("payment_id", p.ID.String()).
		Str("amount", p.Amount.String()).Str("status", string(out.Status)).Msg("invoice payment recorded")

	evt := websocket.NewEvent(websocket.TopicInvoices, "payment.recorded", out.ID.String(), map[string]interface{}{
		"number":          out.Number,
		"amount":          p.Amount,
		"amountRemaining": out.AmountRemaining,
		"status":          out.Status,
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("invoice", out.Number).Msg("publish payment event")
	}
	return out, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	if _, err := s.repo.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}

// Totals aggregates invoices issued in [from, to). Nil bounds are open.
func (s *Service) Totals(ctx context.Context, from, to *time.Time) (*Totals, error) {
	return s.repo.Totals(ctx, from, to, truncateDay(s.now()))
}

