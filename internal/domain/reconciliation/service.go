// Package reconciliation is the read-only view that matches declarations,
// payments and disputes against each other.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/claimsnet/claims/internal/domain/declaration"
	"github.com/claimsnet/claims/internal/domain/dispute"
	"github.com/claimsnet/claims/internal/domain/invoice"
	"github.com/claimsnet/claims/internal/domain/ledger"
)

type Declarations interface {
	Get(ctx context.Context, id uuid.UUID) (*declaration.Declaration, error)
	CountByStatus(ctx context.Context, from, to *time.Time) (map[declaration.Status]int, error)
}

type Transactions interface {
	Summarize(ctx context.Context, from, to *time.Time) ([]ledger.Summary, error)
	ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]*ledger.Transaction, error)
}

type Disputes interface {
	Stats(ctx context.Context, from, to *time.Time) (*dispute.Stats, error)
	ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]*dispute.Dispute, error)
}

type Invoices interface {
	Totals(ctx context.Context, from, to *time.Time) (*invoice.Totals, error)
}

// Period bounds the dashboard to [From, To). Nil bounds are open.
type Period struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

type Bucket struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type TransactionFigures struct {
	ByStatus map[ledger.Status]*Bucket `json:"byStatus"`
	ByType   map[ledger.Type]*Bucket   `json:"byType"`
	// Succeeded is money actually paid out. Pending is initiated or in progress.
	Succeeded decimal.Decimal `json:"succeededAmount"`
	Pending   decimal.Decimal `json:"pendingAmount"`
	Failed    decimal.Decimal `json:"failedAmount"`
}

type Dashboard struct {
	Period       Period                     `json:"period"`
	Transactions TransactionFigures         `json:"transactions"`
	Disputes     *dispute.Stats             `json:"disputes"`
	Invoices     *invoice.Totals            `json:"invoices"`
	Declarations map[declaration.Status]int `json:"declarations"`
	GeneratedAt  time.Time                  `json:"generatedAt"`
}

// Statement reconciles one declaration with its payments and disputes.
type Statement struct {
	Declaration  *declaration.Declaration `json:"declaration"`
	Transactions []*ledger.Transaction    `json:"transactions"`
	Disputes     []*dispute.Dispute       `json:"disputes"`
	Succeeded    decimal.Decimal          `json:"succeededAmount"`
	Pending      decimal.Decimal          `json:"pendingAmount"`
	Outstanding  decimal.Decimal          `json:"outstandingAmount"`
}

type Service struct {
	decls        Declarations
	transactions Transactions
	disputes     Disputes
	invoices     Invoices
	now          func() time.Time
}

func NewService(decls Declarations, transactions Transactions, disputes Disputes, invoices Invoices) *Service {
	return &Service{decls: decls, transactions: transactions, disputes: disputes, invoices: invoices, now: time.Now}
}

func (s *Service) Dashboard(ctx context.Context, p Period) (*Dashboard, error) {
	summaries, err := s.transactions.Summarize(ctx, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("summarize transactions: %w", err)
	}
	disputes, err := s.disputes.Stats(ctx, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("dispute stats: %w", err)
	}
	invoices, err := s.invoices.Totals(ctx, p.From, p.To)
	if err != nil {
		return nil, err
	}
	decls, err := s.decls.CountByStatus(ctx, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("count declarations: %w", err)
	}

	return &Dashboard{
		Period:       p,
		Transactions: figures(summaries),
		Disputes:     disputes,
		Invoices:     invoices,
		Declarations: decls,
		GeneratedAt:  s.now().UTC(),
	}, nil
}

func figures(summaries []ledger.Summary) TransactionFigures {
	f := TransactionFigures{
		ByStatus: make(map[ledger.Status]*Bucket),
		ByType:   make(map[ledger.Type]*Bucket),
	}
	for _, sm := range summaries {
		add(bucket(f.ByStatus, sm.Status), sm)
		add(bucketType(f.ByType, sm.Type), sm)
		switch sm.Status {
		case ledger.StatusSucceeded:
			f.Succeeded = f.Succeeded.Add(sm.Amount)
		case ledger.StatusFailed:
			f.Failed = f.Failed.Add(sm.Amount)
		default:
			f.Pending = f.Pending.Add(sm.Amount)
		}
	}
	return f
}

func bucket(m map[ledger.Status]*Bucket, k ledger.Status) *Bucket {
	if b, ok := m[k]; ok {
		return b
	}
	b := &Bucket{}
	m[k] = b
	return b
}

func bucketType(m map[ledger.Type]*Bucket, k ledger.Type) *Bucket {
	if b, ok := m[k]; ok {
		return b
	}
	b := &Bucket{}
	m[k] = b
	return b
}

func add(b *Bucket, sm ledger.Summary) {
	b.Count += sm.Count
	b.Amount = b.Amount.Add(sm.Amount)
}

func (s *Service) DeclarationStatement(ctx context.Context, declarationID uuid.UUID) (*Statement, error) {
	d, err := s.decls.Get(ctx, declarationID)
	if err != nil {
		return nil, err
	}
	trxs, err := s.transactions.ListByDeclaration(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	disputes, err := s.disputes.ListByDeclaration(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}

	st := &Statement{Declaration: d, Transactions: trxs, Disputes: disputes}
	for _, t := range trxs {
		switch t.Status {
		case ledger.StatusSucceeded:
			st.Succeeded = st.Succeeded.Add(t.Amount)
		case ledger.StatusInitiated, ledger.StatusInProgress:
			st.Pending = st.Pending.Add(t.Amount)
		}
	}
	if d.Status != declaration.StatusRejected {
		st.Outstanding = d.ReimbursableAmount.Sub(st.Succeeded)
	}
	return st, nil
}
