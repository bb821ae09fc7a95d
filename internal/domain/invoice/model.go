package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/claimsnet/claims/internal/domain/payment"
	"github.com/claimsnet/claims/pkg/fieldmap"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"

	// StatusOverdue is never stored. It is derived at read time and accepted
	// as a list filter.
	StatusOverdue Status = "overdue"
)

var Statuses = []Status{StatusPending, StatusPartiallyPaid, StatusPaid}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Line struct {
	ID        uuid.UUID       `json:"id"`
	Label     string          `json:"label"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type Invoice struct {
	ID              uuid.UUID       `json:"id"`
	Number          string          `json:"number"`
	BeneficiaryID   string          `json:"beneficiaryId"`
	BeneficiaryName *string         `json:"beneficiaryName,omitempty"`
	PayerID         *string         `json:"payerId,omitempty"`
	IssueDate       time.Time       `json:"issueDate"`
	DueDate         time.Time       `json:"dueDate"`
	Lines           []Line          `json:"lines"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	AmountRemaining decimal.Decimal `json:"amountRemaining"`
	Status          Status          `json:"status"`
	DisplayStatus   Status          `json:"displayStatus"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Overdue reports whether the invoice is unpaid past its due date on today.
func (inv *Invoice) Overdue(today time.Time) bool {
	return inv.Status != StatusPaid && inv.DueDate.Before(truncateDay(today))
}

// Decorate fills the display status for today.
func (inv *Invoice) Decorate(today time.Time) {
	inv.DisplayStatus = inv.Status
	if inv.Overdue(today) {
		inv.DisplayStatus = StatusOverdue
	}
}

// ComputeTotals sets each line total and the invoice total, and resets the
// balance to unpaid.
func (inv *Invoice) ComputeTotals() {
	total := decimal.Zero
	for i := range inv.Lines {
		l := &inv.Lines[i]
		l.LineTotal = l.Quantity.Mul(l.UnitPrice)
		total = total.Add(l.LineTotal)
	}
	inv.TotalAmount = total
	inv.AmountPaid = decimal.Zero
	inv.AmountRemaining = total
	inv.Status = StatusPending
}

// ApplyPayment adds amount to the paid balance and recomputes the status.
// Callers must have checked that amount does not exceed the remaining balance.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) {
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.AmountRemaining = inv.TotalAmount.Sub(inv.AmountPaid)
	switch {
	case !inv.AmountRemaining.IsPositive():
		inv.AmountRemaining = decimal.Zero
		inv.Status = StatusPaid
	case inv.AmountPaid.IsPositive():
		inv.Status = StatusPartiallyPaid
	default:
		inv.Status = StatusPending
	}
}

// SearchText is the folded text matched by list searches.
func (inv *Invoice) SearchText() string {
	parts := []string{inv.Number, inv.BeneficiaryID}
	if inv.BeneficiaryName != nil {
		parts = append(parts, *inv.BeneficiaryName)
	}
	if inv.Notes != nil {
		parts = append(parts, *inv.Notes)
	}
	return fieldmap.Fold(strings.Join(parts, " "))
}

// NewNumber builds a FAC-YYYYMMDD-XXXXXX number from the creation date and id.
func NewNumber(at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("FAC-%s-%s", at.Format("20060102"), strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6]))
}

// Payment is an immutable partial or full settlement of an invoice.
type Payment struct {
	ID         uuid.UUID       `json:"id"`
	InvoiceID  uuid.UUID       `json:"invoiceId"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paidAt"`
	Method     payment.Method  `json:"method"`
	Reference  *string         `json:"reference,omitempty"`
	Notes      *string         `json:"notes,omitempty"`
	RecordedBy *string         `json:"recordedBy,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Filter struct {
	Status  Status
	PayerID string
	Search  string
	Page    int
	Limit   int
}

// Totals aggregates the invoices issued in a period.
type Totals struct {
	Count        int             `json:"count"`
	Billed       decimal.Decimal `json:"billed"`
	Paid         decimal.Decimal `json:"paid"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	OverdueCount int             `json:"overdueCount"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
