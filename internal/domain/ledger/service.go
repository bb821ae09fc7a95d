package ledger

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
	currency  string
	now       func() time.Time
}

// NewService builds the ledger. currency is used for transactions that do
// not name one.
func NewService(repo Repository, tx db.TxRunner, publisher websocket.EventPublisher, currency string) *Service {
	if publisher == nil {
		publisher = websocket.NopPublisher{}
	}
	return &Service{repo: repo, tx: tx, publisher: publisher, currency: currency, now: time.Now}
}

func (s *Service) Initiate(ctx context.Context, in Initiation) (*Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("amount", "must be greater than zero")
	}
	if !in.Method.Valid() {
		return nil, apperr.Validation("method", "unknown payment method %q", in.Method)
	}
	if strings.TrimSpace(in.BeneficiaryID) == "" {
		return nil, apperr.Validation("beneficiaryId", "is required")
	}
	if in.Type == "" {
		in.Type = TypeReimbursement
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("type", "unknown transaction type %q", in.Type)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}

	now := s.now().UTC()
	t := &Transaction{
		ID:            uuid.New(),
		Type:          in.Type,
		BeneficiaryID: in.BeneficiaryID,
		Amount:        in.Amount,
		Currency:      currency,
		Method:        in.Method,
		Status:        StatusInitiated,
		DeclarationID: in.DeclarationID,
		InvoiceID:     in.InvoiceID,
		InitiatedBy:   strPtr(in.InitiatedBy),
		InitiatedAt:   now,
		UpdatedAt:     now,
	}
	t.Reference = NewReference(now, t)

	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, t)
	}); err != nil {
		return nil, fmt.Errorf("initiate transaction: %w", err)
	}

	metrics.WorkflowTransitions.WithLabelValues("transaction", string(t.Status)).Inc()
	log.Info().Str("reference", t.Reference).Str("amount", t.Amount.String()).
		Str("beneficiary", t.BeneficiaryID).Msg("transaction initiated")
	s.publish(ctx, t)
	return t, nil
}

// UpdateStatus moves a transaction along its lifecycle. Repeating the status
// a transaction already has is a no-op reported by changed=false.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, bankReference, reason string) (*Transaction, bool, error) {
	if !status.Valid() {
		return nil, false, apperr.Validation("status", "unknown status %q", status)
	}

	var out *Transaction
	changed := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		out = t
		if t.Status == status {
			return nil
		}
		if t.Status.Terminal() {
			return apperr.Conflict("transaction %s is already %s", t.Reference, t.Status)
		}
		if !CanTransition(t.Status, status) {
			return apperr.Conflict("transaction %s cannot move from %s to %s", t.Reference, t.Status, status)
		}

		from := t.Status
		now := s.now().UTC()
		t.Status = status
		t.UpdatedAt = now
		if ref := strings.TrimSpace(bankReference); ref != "" {
			t.BankReference = &ref
		}
		if status == StatusFailed {
			t.FailureReason = strPtr(strings.TrimSpace(reason))
		}
		if status.Terminal() {
			t.ExecutedAt = &now
		}

		updated, err := s.repo.UpdateStatus(ctx, t, from)
		if err != nil {
			return fmt.Errorf("update transaction status: %w", err)
		}
		if !updated {
			return apperr.Conflict("transaction %s was modified concurrently", t.Reference)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		metrics.WorkflowTransitions.WithLabelValues("transaction", string(out.Status)).Inc()
		log.Info().Str("reference", out.Reference).Str("status", string(out.Status)).Msg("transaction status updated")
		s.publish(ctx, out)
	}
	return out, changed, nil
}

func (s *Service) publish(ctx context.Context, t *Transaction) {
	evt := websocket.NewEvent(websocket.TopicTransactions, "transaction."+string(t.Status), t.ID.String(), t)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("reference", t.Reference).Msg("publish transaction event")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Transaction, int, error) {
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	p := pagination.New(f.Page, f.Limit)
	return s.repo.List(ctx, f, p.Limit, p.Offset())
}

func (s *Service) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]*Transaction, error) {
	return s.repo.ListByDeclaration(ctx, declarationID)
}

// Summarize groups transactions initiated in [from, to) by status and type.
func (s *Service) Summarize(ctx context.Context, from, to *time.Time) ([]Summary, error) {
	return s.repo.Summarize(ctx, from, to)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
