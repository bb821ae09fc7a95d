package invoice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *mockRepo, *echo.Echo) {
	svc, repo, _ := newTestService()
	return NewHandler(svc), svc, repo, echo.New()
}

func TestHandler_Create_LegacyFields(t *testing.T) {
	h, _, repo, e := newTestHandler()
	body := `{"COD_BEN":"BEN-009","NOM_BEN":"Awa Traoré","cod_payeur":"CNAM","DATE_EMISSION":"2026-03-01",
		"lignes":[{"LIBELLE":"Hospitalisation","QUANTITE":3,"PRIX_UNITAIRE":"500"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp struct {
		Success   bool      `json:"success"`
		FactureID uuid.UUID `json:"factureId"`
		Numero    string    `json:"numero"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	stored, ok := repo.items[resp.FactureID]
	if !ok {
		t.Fatalf("invoice %s not stored", resp.FactureID)
	}
	if stored.BeneficiaryID != "BEN-009" || stored.PayerID == nil || *stored.PayerID != "CNAM" {
		t.Errorf("unexpected invoice %+v", stored)
	}
	if stored.TotalAmount.String() != "1500" {
		t.Errorf("expected total 1500, got %s", stored.TotalAmount)
	}
	if stored.IssueDate.Format("2006-01-02") != "2026-03-01" {
		t.Errorf("unexpected issue date %s", stored.IssueDate)
	}
}

func TestHandler_RecordPayment(t *testing.T) {
	h, svc, repo, e := newTestHandler()
	inv := newInvoice(t, svc, "1500")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"MONTANT":"1500","METHODE":"VIREMENT","REFERENCE":"VIR-77"}`))
	req = req.WithContext(auth.WithIdentity(context.Background(), "caissier-1", auth.RoleFinance))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	if err := h.RecordPayment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"paid"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	p := repo.payments[inv.ID][0]
	if p.Method != "transfer" || p.RecordedBy == nil || *p.RecordedBy != "caissier-1" {
		t.Errorf("unexpected payment %+v", p)
	}
}

func TestHandler_RecordPayment_UnknownMethod(t *testing.T) {
	h, svc, _, e := newTestHandler()
	inv := newInvoice(t, svc, "1500")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":100,"method":"troc"}`))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	if err := h.RecordPayment(c); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandler_List(t *testing.T) {
	h, svc, _, e := newTestHandler()
	newInvoice(t, svc, "100")
	newInvoice(t, svc, "200")

	req := httptest.NewRequest(http.MethodGet, "/?statut=EN_ATTENTE&limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Factures   []*Invoice `json:"factures"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Factures) != 1 || body.Pagination.Total != 2 {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_GetAndPayments(t *testing.T) {
	h, svc, _, e := newTestHandler()
	inv := newInvoice(t, svc, "1500")
	if _, err := svc.RecordPayment(context.Background(), inv.ID, pay("500")); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())
	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"displayStatus":"partially_paid"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())
	if err := h.ListPayments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"amount":"500"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Get_InvalidID(t *testing.T) {
	h, _, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
