package invoice

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/claimsnet/claims/internal/domain/payment"
	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/internal/platform/websocket"
)

type mockRepo struct {
	items    map[uuid.UUID]*Invoice
	payments map[uuid.UUID][]*Payment
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Invoice), payments: make(map[uuid.UUID][]*Payment)}
}

func (m *mockRepo) Create(_ context.Context, inv *Invoice) error {
	cp := *inv
	m.items[inv.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("invoice")
	}
	cp := *inv
	return &cp, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) List(_ context.Context, f Filter, today time.Time, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.items {
		switch {
		case f.Status == StatusOverdue && !inv.Overdue(today):
			continue
		case f.Status != "" && f.Status != StatusOverdue && inv.Status != f.Status:
			continue
		}
		if f.PayerID != "" && (inv.PayerID == nil || *inv.PayerID != f.PayerID) {
			continue
		}
		if f.Search != "" && !strings.Contains(inv.SearchText(), strings.ToLower(f.Search)) {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	total := len(out)
	if offset >= len(out) {
		return []*Invoice{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *mockRepo) UpdateBalance(_ context.Context, inv *Invoice) error {
	cp := *inv
	m.items[inv.ID] = &cp
	return nil
}

func (m *mockRepo) AddPayment(_ context.Context, p *Payment) error {
	m.payments[p.InvoiceID] = append(m.payments[p.InvoiceID], p)
	return nil
}

func (m *mockRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	return m.payments[invoiceID], nil
}

func (m *mockRepo) Totals(_ context.Context, _, _ *time.Time, today time.Time) (*Totals, error) {
	t := &Totals{}
	for _, inv := range m.items {
		t.Count++
		t.Billed = t.Billed.Add(inv.TotalAmount)
		t.Paid = t.Paid.Add(inv.AmountPaid)
		t.Outstanding = t.Outstanding.Add(inv.AmountRemaining)
		if inv.Overdue(today) {
			t.OverdueCount++
		}
	}
	return t, nil
}

type recordingPublisher struct {
	events []websocket.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e websocket.Event) error {
	p.events = append(p.events, e)
	return nil
}

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo, *recordingPublisher) {
	repo := newMockRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, db.NopTxRunner{}, pub, 30)
	svc.now = func() time.Time { return testNow }
	return svc, repo, pub
}

func newInvoice(t *testing.T, svc *Service, total string) *Invoice {
	t.Helper()
	inv := &Invoice{
		BeneficiaryID: "BEN-001",
		Lines: []Line{
			{Label: "Consultation", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString(total)},
		},
	}
	if err := svc.Create(context.Background(), inv); err != nil {
		t.Fatalf("create: %v", err)
	}
	return inv
}

func pay(amount string) *Payment {
	return &Payment{Amount: decimal.RequireFromString(amount), Method: payment.MethodTransfer}
}

func TestCreate_ComputesTotalsAndDueDate(t *testing.T) {
	svc, _, _ := newTestService()
	inv := &Invoice{
		BeneficiaryID: "BEN-001",
		Lines: []Line{
			{Label: "Consultation", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(500)},
			{Label: "Radiographie", Quantity: decimal.RequireFromString("0.5"), UnitPrice: decimal.NewFromInt(1000)},
		},
	}
	if err := svc.Create(context.Background(), inv); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !inv.TotalAmount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected total 1500, got %s", inv.TotalAmount)
	}
	if !inv.Lines[1].LineTotal.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected line total 500, got %s", inv.Lines[1].LineTotal)
	}
	if inv.Status != StatusPending || !inv.AmountRemaining.Equal(inv.TotalAmount) {
		t.Errorf("unexpected status %s remaining %s", inv.Status, inv.AmountRemaining)
	}
	wantDue := time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC)
	if !inv.DueDate.Equal(wantDue) {
		t.Errorf("expected due %s, got %s", wantDue, inv.DueDate)
	}
	if !strings.HasPrefix(inv.Number, "FAC-20260314-") {
		t.Errorf("unexpected number %s", inv.Number)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	line := func(qty, price string) Line {
		return Line{Label: "Acte", Quantity: decimal.RequireFromString(qty), UnitPrice: decimal.RequireFromString(price)}
	}
	tests := []struct {
		name  string
		inv   *Invoice
		field string
	}{
		{"no beneficiary", &Invoice{Lines: []Line{line("1", "10")}}, "beneficiaryId"},
		{"no lines", &Invoice{BeneficiaryID: "B"}, "lines"},
		{"zero quantity", &Invoice{BeneficiaryID: "B", Lines: []Line{line("0", "10")}}, "lines[0].quantity"},
		{"negative price", &Invoice{BeneficiaryID: "B", Lines: []Line{line("1", "10"), line("1", "-1")}}, "lines[1].unitPrice"},
		{"due before issue", &Invoice{
			BeneficiaryID: "B",
			IssueDate:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			DueDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Lines:         []Line{line("1", "10")},
		}, "dueDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.inv)
			ae, ok := err.(*apperr.Error)
			if !ok || ae.Kind != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ae.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ae.Field)
			}
		})
	}
}

func TestCreate_FreeLineAllowed(t *testing.T) {
	svc, _, _ := newTestService()
	inv := &Invoice{BeneficiaryID: "B", Lines: []Line{{Label: "Gratuit", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.Zero}}}
	if err := svc.Create(context.Background(), inv); err != nil {
		t.Fatalf("expected zero-priced line to be accepted, got %v", err)
	}
}

func TestRecordPayment_FullSettlement(t *testing.T) {
	svc, repo, pub := newTestService()
	inv := newInvoice(t, svc, "1500")

	out, err := svc.RecordPayment(context.Background(), inv.ID, pay("1500"))
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if out.Status != StatusPaid {
		t.Errorf("expected paid, got %s", out.Status)
	}
	if !out.AmountRemaining.IsZero() {
		t.Errorf("expected remaining 0, got %s", out.AmountRemaining)
	}
	if len(repo.payments[inv.ID]) != 1 {
		t.Errorf("expected one stored payment, got %d", len(repo.payments[inv.ID]))
	}
	if len(pub.events) != 1 || pub.events[0].Type != "payment.recorded" {
		t.Errorf("expected a payment.recorded event, got %+v", pub.events)
	}
}

func TestRecordPayment_Overpayment(t *testing.T) {
	svc, repo, _ := newTestService()
	inv := newInvoice(t, svc, "1500")

	_, err := svc.RecordPayment(context.Background(), inv.ID, pay("2000"))
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored := repo.items[inv.ID]
	if stored.Status != StatusPending || !stored.AmountRemaining.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("invoice must be unchanged, got status %s remaining %s", stored.Status, stored.AmountRemaining)
	}
	if len(repo.payments[inv.ID]) != 0 {
		t.Error("no payment should be stored")
	}
}

func TestRecordPayment_Partial(t *testing.T) {
	svc, _, _ := newTestService()
	inv := newInvoice(t, svc, "1500")

	out, err := svc.RecordPayment(context.Background(), inv.ID, pay("600"))
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if out.Status != StatusPartiallyPaid || !out.AmountRemaining.Equal(decimal.NewFromInt(900)) {
		t.Errorf("unexpected status %s remaining %s", out.Status, out.AmountRemaining)
	}

	out, err = svc.RecordPayment(context.Background(), inv.ID, pay("900"))
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if out.Status != StatusPaid {
		t.Errorf("expected paid, got %s", out.Status)
	}

}

func TestRecordPayment_AfterFullPayment(t *testing.T) {
	svc, repo, _ := newTestService()
	inv := newInvoice(t, svc, "1500")

	if _, err := svc.RecordPayment(context.Background(), inv.ID, pay("1500")); err != nil {
		t.Fatalf("full payment: %v", err)
	}
	_, err := svc.RecordPayment(context.Background(), inv.ID, pay("1"))
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error on a settled invoice, got %v", err)
	}
	if !repo.items[inv.ID].AmountRemaining.IsZero() {
		t.Errorf("remaining changed: %s", repo.items[inv.ID].AmountRemaining)
	}
}

func TestRecordPayment_RemainingNeverNegative(t *testing.T) {
	svc, repo, _ := newTestService()
	inv := newInvoice(t, svc, "1000")

	for _, amount := range []string{"300", "0", "-5", "800", "250.5", "449.5", "0.01"} {
		_, _ = svc.RecordPayment(context.Background(), inv.ID, pay(amount))

		stored := repo.items[inv.ID]
		paid := decimal.Zero
		for _, p := range repo.payments[inv.ID] {
			paid = paid.Add(p.Amount)
		}
		if stored.AmountRemaining.IsNegative() {
			t.Fatalf("remaining went negative after %s: %s", amount, stored.AmountRemaining)
		}
		if !stored.AmountRemaining.Equal(stored.TotalAmount.Sub(paid)) {
			t.Fatalf("remaining %s != total - payments %s", stored.AmountRemaining, stored.TotalAmount.Sub(paid))
		}
	}
	if repo.items[inv.ID].Status != StatusPaid {
		t.Errorf("expected paid after exact settlement, got %s", repo.items[inv.ID].Status)
	}
}

func TestRecordPayment_InvalidInput(t *testing.T) {
	svc, _, _ := newTestService()
	inv := newInvoice(t, svc, "1500")

	if _, err := svc.RecordPayment(context.Background(), inv.ID, pay("0")); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for zero amount, got %v", err)
	}
	bad := pay("10")
	bad.Method = "barter"
	if _, err := svc.RecordPayment(context.Background(), inv.ID, bad); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for unknown method, got %v", err)
	}
	if _, err := svc.RecordPayment(context.Background(), uuid.New(), pay("10")); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestList_OverdueAndSearch(t *testing.T) {
	svc, _, _ := newTestService()
	late := &Invoice{
		BeneficiaryID:   "BEN-002",
		BeneficiaryName: strPtr("Hélène Koné"),
		IssueDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:         time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Lines:           []Line{{Label: "Soins", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}},
	}
	if err := svc.Create(context.Background(), late); err != nil {
		t.Fatal(err)
	}
	newInvoice(t, svc, "200")

	items, total, err := svc.List(context.Background(), Filter{Status: StatusOverdue})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].ID != late.ID || items[0].DisplayStatus != StatusOverdue {
		t.Errorf("expected only the late invoice flagged overdue, got %d items", total)
	}

	items, _, err = svc.List(context.Background(), Filter{Search: "helene"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != late.ID {
		t.Errorf("expected accent-insensitive match, got %d items", len(items))
	}

	if _, _, err := svc.List(context.Background(), Filter{Status: "archived"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	svc, _, _ := newTestService()
	a := newInvoice(t, svc, "1000")
	newInvoice(t, svc, "500")
	if _, err := svc.RecordPayment(context.Background(), a.ID, pay("400")); err != nil {
		t.Fatal(err)
	}

	totals, err := svc.Totals(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !totals.Billed.Equal(decimal.NewFromInt(1500)) || !totals.Paid.Equal(decimal.NewFromInt(400)) ||
		!totals.Outstanding.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("unexpected totals %+v", totals)
	}
}

func strPtr(s string) *string { return &s }
