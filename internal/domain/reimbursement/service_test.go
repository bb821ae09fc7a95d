package reimbursement

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/claimsnet/claims/internal/domain/declaration"
	"github.com/claimsnet/claims/internal/domain/ledger"
	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/internal/platform/websocket"
)

type fakeDecls struct {
	items     map[uuid.UUID]*declaration.Declaration
	markPaids int
}

func (f *fakeDecls) Create(_ context.Context, d *declaration.Declaration) error {
	if strings.TrimSpace(d.BeneficiaryID) == "" {
		return apperr.Validation("beneficiaryId", "is required")
	}
	d.ID = uuid.New()
	d.Number = "DEC-TEST-" + d.ID.String()[:6]
	d.Status = declaration.StatusSubmitted
	d.CoverageRate = decimal.RequireFromString("0.8")
	d.ComputeAmounts(0)
	cp := *d
	f.items[d.ID] = &cp
	return nil
}

func (f *fakeDecls) Get(_ context.Context, id uuid.UUID) (*declaration.Declaration, error) {
	d, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("declaration")
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDecls) Lock(ctx context.Context, id uuid.UUID) (*declaration.Declaration, error) {
	return f.Get(ctx, id)
}

func (f *fakeDecls) move(id uuid.UUID, to declaration.Status) (*declaration.Declaration, error) {
	d, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("declaration")
	}
	if !declaration.CanTransition(d.Status, to) {
		return nil, apperr.Conflict("declaration %s cannot become %s", d.Status, to)
	}
	d.Status = to
	cp := *d
	return &cp, nil
}

func (f *fakeDecls) Transition(_ context.Context, id uuid.UUID, action declaration.Action, reason, _ string) (*declaration.Declaration, error) {
	target, _ := action.Target()
	if target == declaration.StatusRejected && strings.TrimSpace(reason) == "" {
		return nil, apperr.Validation("motif", "a rejection reason is required")
	}
	return f.move(id, target)
}

func (f *fakeDecls) MarkPaid(_ context.Context, id uuid.UUID) (*declaration.Declaration, error) {
	f.markPaids++
	return f.move(id, declaration.StatusPaid)
}

type fakeLedger struct {
	items map[uuid.UUID]*ledger.Transaction
}

func (f *fakeLedger) Initiate(_ context.Context, in ledger.Initiation) (*ledger.Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("amount", "must be greater than zero")
	}
	t := &ledger.Transaction{
		ID:            uuid.New(),
		Type:          in.Type,
		BeneficiaryID: in.BeneficiaryID,
		Amount:        in.Amount,
		Method:        in.Method,
		Status:        ledger.StatusInitiated,
		DeclarationID: in.DeclarationID,
	}
	t.Reference = "TRX-" + t.ID.String()[:8]
	cp := *t
	f.items[t.ID] = &cp
	return t, nil
}

func (f *fakeLedger) UpdateStatus(_ context.Context, id uuid.UUID, status ledger.Status, bankReference, _ string) (*ledger.Transaction, bool, error) {
	t, ok := f.items[id]
	if !ok {
		return nil, false, apperr.NotFound("transaction")
	}
	if t.Status == status {
		cp := *t
		return &cp, false, nil
	}
	if !ledger.CanTransition(t.Status, status) {
		return nil, false, apperr.Conflict("transaction is %s", t.Status)
	}
	t.Status = status
	if bankReference != "" {
		t.BankReference = &bankReference
	}
	cp := *t
	return &cp, true, nil
}

func (f *fakeLedger) ListByDeclaration(_ context.Context, declarationID uuid.UUID) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	for _, t := range f.items {
		if t.DeclarationID != nil && *t.DeclarationID == declarationID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	events []websocket.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e websocket.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc    *Service
	decls  *fakeDecls
	ledger *fakeLedger
	pub    *recordingPublisher
}

func newFixture() *fixture {
	f := &fixture{
		decls:  &fakeDecls{items: map[uuid.UUID]*declaration.Declaration{}},
		ledger: &fakeLedger{items: map[uuid.UUID]*ledger.Transaction{}},
		pub:    &recordingPublisher{},
	}
	f.svc = NewService(f.decls, f.ledger, db.NopTxRunner{}, f.pub)
	return f
}

func (f *fixture) validated(t *testing.T, total string) *declaration.Declaration {
	t.Helper()
	d := &declaration.Declaration{BeneficiaryID: "BEN-001", DeclarantName: "Kouame Aya", TotalAmount: decimal.RequireFromString(total)}
	if err := f.svc.SubmitDeclaration(context.Background(), d); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.ProcessDeclaration(context.Background(), d.ID, "valider", "", "agent"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return d
}

func TestProcessDeclaration_Actions(t *testing.T) {
	f := newFixture()
	d := &declaration.Declaration{BeneficiaryID: "BEN-001", DeclarantName: "X", TotalAmount: decimal.NewFromInt(100)}
	if err := f.svc.SubmitDeclaration(context.Background(), d); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.ProcessDeclaration(context.Background(), d.ID, "archiver", "", "agent"); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for an unknown action, got %v", err)
	}
	if _, err := f.svc.ProcessDeclaration(context.Background(), d.ID, "rejeter", "  ", "agent"); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for an empty motif, got %v", err)
	}
	out, err := f.svc.ProcessDeclaration(context.Background(), d.ID, "REJETER", "Pièces manquantes", "agent")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != declaration.StatusRejected {
		t.Errorf("expected rejected, got %s", out.Status)
	}
	if _, err := f.svc.ProcessDeclaration(context.Background(), d.ID, "valider", "", "agent"); !apperr.IsConflict(err) {
		t.Errorf("a rejected declaration must not be revalidated, got %v", err)
	}

	got := strings.Join(f.pub.types(), ",")
	if got != "declaration.submitted,declaration.rejected" {
		t.Errorf("unexpected events %s", got)
	}
}

func TestInitiatePayment_RequiresValidated(t *testing.T) {
	f := newFixture()
	d := &declaration.Declaration{BeneficiaryID: "BEN-001", DeclarantName: "X", TotalAmount: decimal.NewFromInt(100)}
	if err := f.svc.SubmitDeclaration(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID}, "cashier"); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for a submitted declaration, got %v", err)
	}
	if _, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{}, "cashier"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error without a declaration, got %v", err)
	}
}

func TestInitiatePayment_Defaults(t *testing.T) {
	f := newFixture()
	d := f.validated(t, "10000")

	trx, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID}, "cashier")
	if err != nil {
		t.Fatal(err)
	}
	if !trx.Amount.Equal(decimal.NewFromInt(8000)) {
		t.Errorf("expected the reimbursable amount 8000, got %s", trx.Amount)
	}
	if trx.BeneficiaryID != "BEN-001" || trx.Method != "transfer" || trx.Type != ledger.TypeReimbursement {
		t.Errorf("unexpected defaults %+v", trx)
	}
}

func TestInitiatePayment_AmountCapped(t *testing.T) {
	f := newFixture()
	d := f.validated(t, "10000")

	_, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID, Amount: decimal.NewFromInt(8001)}, "")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error above the reimbursable amount, got %v", err)
	}

	if _, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID, Amount: decimal.NewFromInt(5000)}, ""); err != nil {
		t.Fatal(err)
	}
	rest, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID}, "")
	if err != nil {
		t.Fatal(err)
	}
	if !rest.Amount.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("expected the remaining 3000, got %s", rest.Amount)
	}
	if _, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID}, ""); !apperr.IsConflict(err) {
		t.Errorf("expected conflict once fully initiated, got %v", err)
	}
}

func TestInitiatePayment_FailedFreesAmount(t *testing.T) {
	f := newFixture()
	d := f.validated(t, "10000")

	first, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ConfirmPayment(context.Background(), first.ID, "ECHEC", "", "rejected by bank"); err != nil {
		t.Fatal(err)
	}
	retry, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID}, "")
	if err != nil {
		t.Fatalf("a new transaction must be allowed after a failure, got %v", err)
	}
	if retry.ID == first.ID || !retry.Amount.Equal(decimal.NewFromInt(8000)) {
		t.Errorf("unexpected retry %+v", retry)
	}
}

func TestConfirmPayment_MarksDeclarationPaidOnce(t *testing.T) {
	f := newFixture()
	d := f.validated(t, "10000")
	trx, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID}, "")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		out, err := f.svc.ConfirmPayment(context.Background(), trx.ID, "succeeded", "BANK-1", "")
		if err != nil {
			t.Fatalf("confirm #%d: %v", i+1, err)
		}
		if out.Status != ledger.StatusSucceeded {
			t.Errorf("expected succeeded, got %s", out.Status)
		}
	}
	if f.decls.markPaids != 1 {
		t.Errorf("expected a single MarkPaid, got %d", f.decls.markPaids)
	}
	if f.decls.items[d.ID].Status != declaration.StatusPaid {
		t.Errorf("expected paid, got %s", f.decls.items[d.ID].Status)
	}

	paidEvents := 0
	for _, typ := range f.pub.types() {
		if typ == "declaration.paid" {
			paidEvents++
		}
	}
	if paidEvents != 1 {
		t.Errorf("expected one declaration.paid event, got %d", paidEvents)
	}
}

func TestConfirmPayment_InProgressLeavesDeclaration(t *testing.T) {
	f := newFixture()
	d := f.validated(t, "500")
	trx, err := f.svc.InitiatePayment(context.Background(), PaymentRequest{DeclarationID: d.ID}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ConfirmPayment(context.Background(), trx.ID, "EN_COURS", "", ""); err != nil {
		t.Fatal(err)
	}
	if f.decls.items[d.ID].Status != declaration.StatusValidated {
		t.Errorf("expected validated, got %s", f.decls.items[d.ID].Status)
	}
	if _, err := f.svc.ConfirmPayment(context.Background(), trx.ID, "", "", ""); !apperr.IsValidation(err) {
		t.Errorf("expected validation error without a status, got %v", err)
	}
}
