package declaration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/internal/platform/metrics"
	"github.com/claimsnet/claims/pkg/pagination"
)

type Service struct {
	repo     Repository
	tx       db.TxRunner
	coverage decimal.Decimal
	scale    int32
	now      func() time.Time
}

// NewService builds the store. coverage is the fund's rate, applied to every
// declaration.
func NewService(repo Repository, tx db.TxRunner, coverage decimal.Decimal, scale int32) *Service {
	return &Service{repo: repo, tx: tx, coverage: coverage, scale: scale, now: time.Now}
}

func (s *Service) Create(ctx context.Context, d *Declaration) error {
	if strings.TrimSpace(d.BeneficiaryID) == "" {
		return apperr.Validation("beneficiaryId", "is required")
	}
	if d.DeclarantType == "" {
		d.DeclarantType = DeclarantBeneficiary
	}
	if !d.DeclarantType.Valid() {
		return apperr.Validation("declarantType", "unknown declarant type %q", d.DeclarantType)
	}
	if strings.TrimSpace(d.DeclarantName) == "" {
		return apperr.Validation("declarantName", "is required")
	}
	if err := validateLines(d.Lines); err != nil {
		return err
	}
	if len(d.Lines) == 0 && !d.TotalAmount.IsPositive() {
		return apperr.Validation("totalAmount", "must be greater than zero")
	}

	// The rate is a fund setting; callers never choose it.
	d.CoverageRate = s.coverage
	d.ComputeAmounts(s.scale)
	if !d.TotalAmount.IsPositive() {
		return apperr.Validation("totalAmount", "must be greater than zero")
	}

	now := s.now().UTC()
	d.ID = uuid.New()
	d.Number = NewNumber(now, d.ID)
	d.Status = StatusSubmitted
	d.CreatedAt = now
	d.UpdatedAt = now

	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, d)
	}); err != nil {
		return fmt.Errorf("create declaration: %w", err)
	}
	return nil
}

func validateLines(lines []Line) error {
	for i, l := range lines {
		if !l.Quantity.IsPositive() {
			return apperr.Validation(fmt.Sprintf("lines[%d].quantity", i), "must be greater than zero")
		}
		if l.UnitPrice.IsNegative() {
			return apperr.Validation(fmt.Sprintf("lines[%d].unitPrice", i), "must not be negative")
		}
		if strings.TrimSpace(l.Label) == "" {
			return apperr.Validation(fmt.Sprintf("lines[%d].label", i), "is required")
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Declaration, error) {
	return s.repo.GetByID(ctx, id)
}

// Lock reads a declaration and holds its row lock until the surrounding
// transaction ends.
func (s *Service) Lock(ctx context.Context, id uuid.UUID) (*Declaration, error) {
	return s.repo.GetForUpdate(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Declaration, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("status", "unknown status %q", f.Status)
	}
	p := pagination.New(f.Page, f.Limit)
	return s.repo.List(ctx, f, p.Limit, p.Offset())
}

// Transition validates or rejects a submitted declaration. A reject needs a
// non-blank reason.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, action Action, reason, actor string) (*Declaration, error) {
	target, ok := action.Target()
	if !ok {
		return nil, apperr.Validation("action", "unknown action %q", action)
	}
	reason = strings.TrimSpace(reason)
	if target == StatusRejected && reason == "" {
		return nil, apperr.Validation("motif", "a rejection reason is required")
	}
	return s.move(ctx, id, target, func(d *Declaration, now time.Time) {
		switch target {
		case StatusValidated:
			d.ValidatedAt = &now
			d.ValidatedBy = strPtr(actor)
		case StatusRejected:
			d.RejectedAt = &now
			d.RejectedBy = strPtr(actor)
			d.RejectionReason = &reason
		}
	})
}

// MarkPaid moves a validated declaration to paid.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Declaration, error) {
	return s.move(ctx, id, StatusPaid, func(d *Declaration, now time.Time) {
		d.PaidAt = &now
	})
}

func (s *Service) move(ctx context.Context, id uuid.UUID, target Status, apply func(*Declaration, time.Time)) (*Declaration, error) {
	var out *Declaration
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(d.Status, target) {
			return apperr.Conflict("declaration %s is %s and cannot become %s", d.Number, d.Status, target)
		}

		from := d.Status
		now := s.now().UTC()
		d.Status = target
		d.UpdatedAt = now
		apply(d, now)

		updated, err := s.repo.UpdateStatus(ctx, d, from)
		if err != nil {
			return fmt.Errorf("update declaration status: %w", err)
		}
		if !updated {
			return apperr.Conflict("declaration %s was modified concurrently", d.Number)
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues("declaration", string(target)).Inc()
	return out, nil
}

// CountByStatus counts declarations created in [from, to). Nil bounds are open.
func (s *Service) CountByStatus(ctx context.Context, from, to *time.Time) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx, from, to)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
