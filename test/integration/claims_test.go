package integration

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/claimsnet/claims/internal/domain/declaration"
	"github.com/claimsnet/claims/internal/domain/dispute"
	"github.com/claimsnet/claims/internal/domain/invoice"
	"github.com/claimsnet/claims/internal/domain/ledger"
	"github.com/claimsnet/claims/internal/domain/payment"
	"github.com/claimsnet/claims/internal/domain/reconciliation"
	"github.com/claimsnet/claims/internal/domain/reimbursement"
	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/internal/platform/websocket"
)

type services struct {
	decls    *declaration.Service
	ledger   *ledger.Service
	invoices *invoice.Service
	disputes *dispute.Service
	workflow *reimbursement.Service
	recon    *reconciliation.Service
}

func newServices() *services {
	tx := db.NewTxRunner(globalPool)
	pub := websocket.NopPublisher{}
	s := &services{
		decls:    newDeclarationService(),
		ledger:   ledger.NewService(ledger.NewRepoPG(globalPool), tx, pub, "XOF"),
		invoices: invoice.NewService(invoice.NewRepoPG(globalPool), tx, pub, 30),
		disputes: dispute.NewService(dispute.NewRepoPG(globalPool), tx, pub),
	}
	s.workflow = reimbursement.NewService(s.decls, s.ledger, tx, pub)
	s.recon = reconciliation.NewService(s.decls, s.ledger, s.disputes, s.invoices)
	return s
}

func TestReimbursementLifecycle(t *testing.T) {
	ctx := context.Background()
	tenant := uniqueTenantID("reimb")
	createTenantSchema(t, ctx, tenant)
	s := newServices()

	err := withTenant(ctx, tenant, func(ctx context.Context) error {
		d := submitDeclaration(t, ctx, s.decls, "BEN-001")
		if !d.ReimbursableAmount.Equal(decimal.NewFromInt(8000)) {
			t.Fatalf("expected reimbursable 8000, got %s", d.ReimbursableAmount)
		}

		if _, err := s.workflow.InitiatePayment(ctx, reimbursement.PaymentRequest{DeclarationID: d.ID}, "finance-1"); !apperr.IsConflict(err) {
			t.Fatalf("expected conflict before validation, got %v", err)
		}
		if _, err := s.workflow.ProcessDeclaration(ctx, d.ID, "valider", "", "agent-1"); err != nil {
			t.Fatalf("validate: %v", err)
		}

		trx, err := s.workflow.InitiatePayment(ctx, reimbursement.PaymentRequest{DeclarationID: d.ID}, "finance-1")
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
		if !trx.Amount.Equal(decimal.NewFromInt(8000)) || trx.Status != ledger.StatusInitiated {
			t.Fatalf("unexpected transaction %+v", trx)
		}
		if !strings.HasPrefix(trx.Reference, "TRX-") {
			t.Errorf("unexpected reference %s", trx.Reference)
		}

		for i := 0; i < 2; i++ {
			if _, err := s.workflow.ConfirmPayment(ctx, trx.ID, "succeeded", "BANK-42", ""); err != nil {
				t.Fatalf("confirm #%d: %v", i+1, err)
			}
		}
		if _, err := s.workflow.ConfirmPayment(ctx, trx.ID, "failed", "", "late"); !apperr.IsConflict(err) {
			t.Errorf("expected conflict on a terminal transaction, got %v", err)
		}

		paid, err := s.decls.Get(ctx, d.ID)
		if err != nil {
			return err
		}
		if paid.Status != declaration.StatusPaid {
			t.Errorf("expected paid declaration, got %s", paid.Status)
		}

		st, err := s.recon.DeclarationStatement(ctx, d.ID)
		if err != nil {
			return err
		}
		if !st.Succeeded.Equal(decimal.NewFromInt(8000)) || !st.Outstanding.IsZero() {
			t.Errorf("unexpected statement succeeded=%s outstanding=%s", st.Succeeded, st.Outstanding)
		}

		dash, err := s.recon.Dashboard(ctx, reconciliation.Period{})
		if err != nil {
			return err
		}
		if !dash.Transactions.Succeeded.Equal(decimal.NewFromInt(8000)) {
			t.Errorf("expected 8000 succeeded on the dashboard, got %s", dash.Transactions.Succeeded)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInvoicePayments(t *testing.T) {
	ctx := context.Background()
	tenant := uniqueTenantID("inv")
	createTenantSchema(t, ctx, tenant)
	s := newServices()

	err := withTenant(ctx, tenant, func(ctx context.Context) error {
		inv := &invoice.Invoice{
			BeneficiaryID: "BEN-002",
			IssueDate:     time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			Lines: []invoice.Line{
				{Label: "Hospitalisation", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50000)},
			},
		}
		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}

		pay := func(amount int64) (*invoice.Invoice, error) {
			return s.invoices.RecordPayment(ctx, inv.ID, &invoice.Payment{Amount: decimal.NewFromInt(amount), Method: payment.MethodTransfer})
		}
		got, err := pay(40000)
		if err != nil {
			return err
		}
		if got.Status != invoice.StatusPartiallyPaid || !got.AmountRemaining.Equal(decimal.NewFromInt(60000)) {
			t.Errorf("unexpected invoice after partial payment: %s %s", got.Status, got.AmountRemaining)
		}
		if _, err := pay(70000); !apperr.IsValidation(err) {
			t.Errorf("expected overpayment to be rejected, got %v", err)
		}
		if got, err = pay(60000); err != nil {
			return err
		}
		if got.Status != invoice.StatusPaid || !got.AmountRemaining.IsZero() {
			t.Errorf("expected a settled invoice, got %s %s", got.Status, got.AmountRemaining)
		}
		if _, err := pay(1); !apperr.IsValidation(err) {
			t.Errorf("expected payment on a settled invoice to be rejected, got %v", err)
		}

		payments, err := s.invoices.ListPayments(ctx, inv.ID)
		if err != nil {
			return err
		}
		if len(payments) != 2 {
			t.Errorf("expected 2 payments, got %d", len(payments))
		}

		items, total, err := s.invoices.List(ctx, invoice.Filter{Search: "ben-002"})
		if err != nil {
			return err
		}
		if total != 1 || len(items) != 1 {
			t.Errorf("expected the invoice to be found by beneficiary, got %d", total)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDisputesAndExport(t *testing.T) {
	ctx := context.Background()
	tenant := uniqueTenantID("disp")
	createTenantSchema(t, ctx, tenant)
	s := newServices()

	err := withTenant(ctx, tenant, func(ctx context.Context) error {
		d := submitDeclaration(t, ctx, s.decls, "BEN-003")
		if _, err := s.workflow.ProcessDeclaration(ctx, d.ID, "validate", "", "agent-1"); err != nil {
			return err
		}
		trx, err := s.workflow.InitiatePayment(ctx, reimbursement.PaymentRequest{DeclarationID: d.ID, Amount: decimal.NewFromInt(3000)}, "finance-1")
		if err != nil {
			return err
		}

		dsp := &dispute.Dispute{
			TransactionID: &trx.ID,
			DeclarationID: &d.ID,
			Type:          dispute.TypeAmountError,
			Action:        "Vérifier le montant",
			Description:   "Le bénéficiaire conteste le montant versé",
		}
		if err := s.disputes.Open(ctx, dsp, "agent-2"); err != nil {
			return err
		}
		if _, err := s.disputes.Close(ctx, dsp.ID, "agent-2"); err != nil {
			return err
		}
		closed, err := s.disputes.Get(ctx, dsp.ID)
		if err != nil {
			return err
		}
		if closed.Status != dispute.StatusClosed || closed.Resolution == nil || *closed.Resolution != dispute.DefaultCloseResolution {
			t.Errorf("unexpected closed dispute %+v", closed)
		}

		var buf bytes.Buffer
		if err := s.ledger.Export(ctx, ledger.Filter{}, &buf, ledger.EncodingWindows1252); err != nil {
			return err
		}
		if !bytes.Contains(buf.Bytes(), []byte(trx.Reference)) {
			t.Errorf("expected the export to contain %s", trx.Reference)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
