package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/claimsnet/claims/internal/domain/payment"
	"github.com/claimsnet/claims/internal/platform/apperr"
)

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

var Statuses = []Status{StatusInitiated, StatusInProgress, StatusSucceeded, StatusFailed}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal transactions are immutable. A failed payment is never retried;
// a new transaction has to be initiated.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusInitiated:  {StatusInProgress, StatusSucceeded, StatusFailed},
	StatusInProgress: {StatusSucceeded, StatusFailed},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Type string

const (
	TypeReimbursement   Type = "reimbursement"
	TypeProviderPayment Type = "provider_payment"
	TypeInvoicePayment  Type = "invoice_payment"
)

var Types = []Type{TypeReimbursement, TypeProviderPayment, TypeInvoicePayment}

func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	Reference     string          `json:"reference"`
	Type          Type            `json:"type"`
	BeneficiaryID string          `json:"beneficiaryId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        payment.Method  `json:"paymentMethod"`
	Status        Status          `json:"status"`
	DeclarationID *uuid.UUID      `json:"declarationId,omitempty"`
	InvoiceID     *uuid.UUID      `json:"invoiceId,omitempty"`
	BankReference *string         `json:"bankReference,omitempty"`
	FailureReason *string         `json:"failureReason,omitempty"`
	InitiatedBy   *string         `json:"initiatedBy,omitempty"`
	InitiatedAt   time.Time       `json:"initiatedAt"`
	ExecutedAt    *time.Time      `json:"executedAt,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Initiation is a request to move money for a declaration or an invoice.
type Initiation struct {
	DeclarationID *uuid.UUID
	InvoiceID     *uuid.UUID
	Amount        decimal.Decimal
	BeneficiaryID string
	Method        payment.Method
	Type          Type
	Currency      string
	InitiatedBy   string
}

// NewReference builds TRX-<unix-millis>-<short id> where the short id comes
// from the linked declaration or invoice, or from the transaction itself.
func NewReference(at time.Time, t *Transaction) string {
	src := t.ID
	switch {
	case t.DeclarationID != nil:
		src = *t.DeclarationID
	case t.InvoiceID != nil:
		src = *t.InvoiceID
	}
	short := strings.ToUpper(strings.ReplaceAll(src.String(), "-", "")[:6])
	return fmt.Sprintf("TRX-%d-%s", at.UnixMilli(), short)
}

type Filter struct {
	From          *time.Time
	To            *time.Time
	Status        Status
	Type          Type
	DeclarationID *uuid.UUID
	Page          int
	Limit         int
}

func (f Filter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return apperr.Validation("status", "unknown status %q", f.Status)
	}
	if f.Type != "" && !f.Type.Valid() {
		return apperr.Validation("type", "unknown transaction type %q", f.Type)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return apperr.Validation("to", "must be after from")
	}
	return nil
}

// Summary is the count and amount of transactions sharing a status and type.
type Summary struct {
	Status Status          `json:"status"`
	Type   Type            `json:"type"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}
