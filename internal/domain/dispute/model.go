package dispute

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

type Type string

const (
	TypeAmountError        Type = "amount_error"
	TypeWrongBeneficiary   Type = "wrong_beneficiary"
	TypeDuplicatePayment   Type = "duplicate_payment"
	TypeTechnicalIssue     Type = "technical_issue"
	TypeLatePayment        Type = "late_payment"
	TypeServiceNotRendered Type = "service_not_rendered"
	TypeSuspectedFraud     Type = "suspected_fraud"
)

var Types = []Type{
	TypeAmountError, TypeWrongBeneficiary, TypeDuplicatePayment, TypeTechnicalIssue,
	TypeLatePayment, TypeServiceNotRendered, TypeSuspectedFraud,
}

func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// MinTextLength is the minimum length, in characters, of a description or
// a resolution.
const MinTextLength = 10

// DefaultCloseResolution is recorded when a dispute is closed without a
// resolution text.
const DefaultCloseResolution = "Closed without a detailed resolution"

// Dispute is a problem raised against a payment or a declaration. Every link
// is optional.
type Dispute struct {
	ID            uuid.UUID  `json:"id"`
	TransactionID *uuid.UUID `json:"transactionId,omitempty"`
	DeclarationID *uuid.UUID `json:"declarationId,omitempty"`
	BeneficiaryID *string    `json:"beneficiaryId,omitempty"`
	Type          Type       `json:"type"`
	Action        string     `json:"action"`
	Description   string     `json:"description"`
	Status        Status     `json:"status"`
	Resolution    *string    `json:"resolution,omitempty"`
	OpenedBy      *string    `json:"openedBy,omitempty"`
	OpenedAt      time.Time  `json:"openedAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy    *string    `json:"resolvedBy,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Resolution is an update to a dispute's handling. An empty Status means
// resolved.
type Resolution struct {
	Status     Status
	Resolution string
	Action     string
}

type Filter struct {
	Status Status
	Limit  int
}

type Stats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
}

// Add counts n disputes in status s.
func (st *Stats) Add(s Status, n int) {
	st.Total += n
	switch s {
	case StatusOpen:
		st.Open += n
	case StatusInProgress:
		st.InProgress += n
	case StatusResolved:
		st.Resolved += n
	case StatusClosed:
		st.Closed += n
	}
}

// Pending is the number of disputes still being worked on.
func (st *Stats) Pending() int {
	return st.Open + st.InProgress
}

// StatsOf computes stats from already loaded disputes.
func StatsOf(items []*Dispute) *Stats {
	st := &Stats{}
	for _, d := range items {
		st.Add(d.Status, 1)
	}
	return st
}
