package declaration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
)

var Statuses = []Status{StatusSubmitted, StatusValidated, StatusRejected, StatusPaid}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// transitions is the full lifecycle. Rejected and paid are terminal.
var transitions = map[Status][]Status{
	StatusSubmitted: {StatusValidated, StatusRejected},
	StatusValidated: {StatusPaid},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Action string

const (
	ActionValidate Action = "validate"
	ActionReject   Action = "reject"
)

func (a Action) Target() (Status, bool) {
	switch a {
	case ActionValidate:
		return StatusValidated, true
	case ActionReject:
		return StatusRejected, true
	}
	return "", false
}

type DeclarantType string

const (
	DeclarantBeneficiary DeclarantType = "beneficiary"
	DeclarantProvider    DeclarantType = "provider"
	DeclarantEmployer    DeclarantType = "employer"
)

func (t DeclarantType) Valid() bool {
	return t == DeclarantBeneficiary || t == DeclarantProvider || t == DeclarantEmployer
}

type Line struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Label       string          `json:"label"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	ServiceDate *time.Time      `json:"serviceDate,omitempty"`
}

func (l Line) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

type Declaration struct {
	ID                 uuid.UUID       `json:"id"`
	Number             string          `json:"number"`
	BeneficiaryID      string          `json:"beneficiaryId"`
	DeclarantType      DeclarantType   `json:"declarantType"`
	DeclarantName      string          `json:"declarantName"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	CoveredAmount      decimal.Decimal `json:"coveredAmount"`
	CopayAmount        decimal.Decimal `json:"copayAmount"`
	ReimbursableAmount decimal.Decimal `json:"reimbursableAmount"`
	CoverageRate       decimal.Decimal `json:"coverageRate"`
	Status             Status          `json:"status"`
	RejectionReason    *string         `json:"rejectionReason,omitempty"`
	Attachments        []string        `json:"attachments"`
	Lines              []Line          `json:"lines"`
	ValidatedAt        *time.Time      `json:"validatedAt,omitempty"`
	ValidatedBy        *string         `json:"validatedBy,omitempty"`
	RejectedAt         *time.Time      `json:"rejectedAt,omitempty"`
	RejectedBy         *string         `json:"rejectedBy,omitempty"`
	PaidAt             *time.Time      `json:"paidAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// ComputeAmounts derives the covered, copay and reimbursable amounts from
// the total. The covered amount is rounded half away from zero to scale.
func (d *Declaration) ComputeAmounts(scale int32) {
	if len(d.Lines) > 0 {
		total := decimal.Zero
		for _, l := range d.Lines {
			total = total.Add(l.Total())
		}
		d.TotalAmount = total
	}
	d.CoveredAmount = d.TotalAmount.Mul(d.CoverageRate).Round(scale)
	d.ReimbursableAmount = d.CoveredAmount
	d.CopayAmount = d.TotalAmount.Sub(d.CoveredAmount)
}

// NewNumber builds a DEC-YYYYMMDD-XXXXXX number from the creation date and id.
func NewNumber(at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("DEC-%s-%s", at.Format("20060102"), strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6]))
}

type Filter struct {
	Status        Status
	BeneficiaryID string
	Page          int
	Limit         int
}
