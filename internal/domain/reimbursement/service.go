// Package reimbursement drives a declaration from submission to payment.
// It owns no table: it sequences the declaration store and the transaction
// ledger, and announces each step on the live event hub.
package reimbursement

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/claimsnet/claims/internal/domain/declaration"
	"github.com/claimsnet/claims/internal/domain/ledger"
	"github.com/claimsnet/claims/internal/domain/payment"
	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/internal/platform/websocket"
	"github.com/claimsnet/claims/pkg/fieldmap"
)

// Declarations is the part of the declaration store the workflow uses.
type Declarations interface {
	Create(ctx context.Context, d *declaration.Declaration) error
	Get(ctx context.Context, id uuid.UUID) (*declaration.Declaration, error)
	Lock(ctx context.Context, id uuid.UUID) (*declaration.Declaration, error)
	Transition(ctx context.Context, id uuid.UUID, action declaration.Action, reason, actor string) (*declaration.Declaration, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*declaration.Declaration, error)
}

// Ledger is the part of the transaction ledger the workflow uses.
type Ledger interface {
	Initiate(ctx context.Context, in ledger.Initiation) (*ledger.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ledger.Status, bankReference, reason string) (*ledger.Transaction, bool, error)
	ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]*ledger.Transaction, error)
}

type Service struct {
	decls     Declarations
	ledger    Ledger
	tx        db.TxRunner
	publisher websocket.EventPublisher
}

func NewService(decls Declarations, l Ledger, tx db.TxRunner, publisher websocket.EventPublisher) *Service {
	if publisher == nil {
		publisher = websocket.NopPublisher{}
	}
	return &Service{decls: decls, ledger: l, tx: tx, publisher: publisher}
}

// PaymentRequest asks for a payout on a validated declaration. A zero Amount
// or an empty BeneficiaryID fall back to the declaration's values.
type PaymentRequest struct {
	DeclarationID uuid.UUID
	Amount        decimal.Decimal
	BeneficiaryID string
	Method        payment.Method
	Currency      string
}

func (s *Service) SubmitDeclaration(ctx context.Context, d *declaration.Declaration) error {
	if err := s.decls.Create(ctx, d); err != nil {
		return err
	}
	log.Info().Str("declaration", d.Number).Str("beneficiary", d.BeneficiaryID).
		Str("reimbursable", d.ReimbursableAmount.String()).Msg("declaration submitted")
	s.publish(ctx, websocket.TopicDeclarations, "declaration.submitted", d.ID, d)
	return nil
}

// ProcessDeclaration applies a validate or reject decision. action accepts
// the French back-office words (valider, rejeter).
func (s *Service) ProcessDeclaration(ctx context.Context, id uuid.UUID, action, reason, actor string) (*declaration.Declaration, error) {
	a := declaration.Action(fieldmap.Enum(fieldmap.DeclarationAction, action))
	if _, ok := a.Target(); !ok {
		return nil, apperr.Validation("action", "must be valider or rejeter")
	}
	d, err := s.decls.Transition(ctx, id, a, reason, actor)
	if err != nil {
		return nil, err
	}
	log.Info().Str("declaration", d.Number).Str("status", string(d.Status)).Str("actor", actor).Msg("declaration processed")
	s.publish(ctx, websocket.TopicDeclarations, "declaration."+string(d.Status), d.ID, d)
	return d, nil
}

// InitiatePayment opens a reimbursement transaction for a validated
// declaration. The amount may not exceed what is left to pay once
// transactions still pending or already succeeded are counted.
func (s *Service) InitiatePayment(ctx context.Context, req PaymentRequest, actor string) (*ledger.Transaction, error) {
	if req.DeclarationID == uuid.Nil {
		return nil, apperr.Validation("declarationId", "is required")
	}

	var out *ledger.Transaction
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, err := s.decls.Lock(ctx, req.DeclarationID)
		if err != nil {
			return err
		}
		if d.Status != declaration.StatusValidated {
			return apperr.Conflict("declaration %s is %s, only validated declarations can be paid", d.Number, d.Status)
		}

		existing, err := s.ledger.ListByDeclaration(ctx, d.ID)
		if err != nil {
			return err
		}
		remaining := d.ReimbursableAmount
		for _, t := range existing {
			if t.Status != ledger.StatusFailed {
				remaining = remaining.Sub(t.Amount)
			}
		}
		if !remaining.IsPositive() {
			return apperr.Conflict("declaration %s has no amount left to pay", d.Number)
		}

		amount := req.Amount
		if amount.IsZero() {
			amount = remaining
		}
		if amount.GreaterThan(remaining) {
			return apperr.Validation("amount", "exceeds the reimbursable amount left (%s)", remaining)
		}
		beneficiary := req.BeneficiaryID
		if beneficiary == "" {
			beneficiary = d.BeneficiaryID
		}
		method := req.Method
		if method == "" {
			method = payment.MethodTransfer
		}

		declID := d.ID
		out, err = s.ledger.Initiate(ctx, ledger.Initiation{
			DeclarationID: &declID,
			Amount:        amount,
			BeneficiaryID: beneficiary,
			Method:        method,
			Type:          ledger.TypeReimbursement,
			Currency:      req.Currency,
			InitiatedBy:   actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, websocket.TopicDeclarations, "payment.initiated", req.DeclarationID, out)
	return out, nil
}

// ConfirmPayment records the outcome reported by the bank. A succeeded
// reimbursement marks its declaration paid in the same database
// transaction. Repeating a confirmation changes nothing.
func (s *Service) ConfirmPayment(ctx context.Context, transactionID uuid.UUID, status, bankReference, reason string) (*ledger.Transaction, error) {
	target := ledger.Status(fieldmap.Enum(fieldmap.TransactionStatus, status))
	if target == "" {
		return nil, apperr.Validation("status", "is required")
	}

	var out *ledger.Transaction
	var paid *declaration.Declaration
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, _, err := s.ledger.UpdateStatus(ctx, transactionID, target, bankReference, reason)
		if err != nil {
			return err
		}
		out = t
		if t.Status != ledger.StatusSucceeded || t.DeclarationID == nil {
			return nil
		}

		d, err := s.decls.Get(ctx, *t.DeclarationID)
		if err != nil {
			return err
		}
		if d.Status == declaration.StatusPaid {
			return nil
		}
		paid, err = s.decls.MarkPaid(ctx, d.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if paid != nil {
		log.Info().Str("declaration", paid.Number).Str("transaction", out.Reference).Msg("declaration paid")
		s.publish(ctx, websocket.TopicDeclarations, "declaration.paid", paid.ID, paid)
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, topic, eventType string, id uuid.UUID, data interface{}) {
	if err := s.publisher.Publish(ctx, websocket.NewEvent(topic, eventType, id.String(), data)); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("publish workflow event")
	}
}
