package db

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTenantContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestExtractTenantID(t *testing.T) {
	c := newTenantContext("/?tenant_id=caisse_query")
	c.Request().Header.Set("X-Tenant-ID", "caisse_header")
	if tid := ResolveTenantID(c, "default"); tid != "caisse_header" {
		t.Errorf("expected header to win over query, got %s", tid)
	}

	c.Set("jwt_tenant_id", "caisse_jwt")
	if tid := ResolveTenantID(c, "default"); tid != "caisse_jwt" {
		t.Errorf("expected JWT claim to win, got %s", tid)
	}

	c = newTenantContext("/?tenant_id=caisse_query")
	if tid := ResolveTenantID(c, "default"); tid != "caisse_query" {
		t.Errorf("expected query tenant, got %s", tid)
	}

	c = newTenantContext("/")
	c.Set("jwt_tenant_id", "")
	if tid := ResolveTenantID(c, "default"); tid != "default" {
		t.Errorf("expected default tenant, got %s", tid)
	}
}

func TestTenantIDPattern(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"default", true},
		{"caisse_1", true},
		{"A1B2", true},
		{"a-b", false},
		{"a.b", false},
		{"", false},
		{"drop;table", false},
	}
	for _, tt := range tests {
		if got := tenantIDPattern.MatchString(tt.input); got != tt.valid {
			t.Errorf("tenantIDPattern.MatchString(%q) = %v, want %v", tt.input, got, tt.valid)
		}
	}
}

func TestCreateTenantSchema_InvalidIDs(t *testing.T) {
	for _, id := range []string{"with-dash", "with.dot", "sp ace", "drop;table"} {
		if err := CreateTenantSchema(context.Background(), nil, id, nil); err == nil {
			t.Errorf("expected error for invalid tenant ID %q", id)
		}
	}
}

func TestSchemaFor(t *testing.T) {
	if got := SchemaFor("caisse"); got != "tenant_caisse" {
		t.Errorf("SchemaFor = %s", got)
	}
}

func TestContextAccessors_WrongTypes(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	if ConnFromContext(ctx) != nil {
		t.Error("expected nil conn for wrong type")
	}
	ctx = context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if TxFromContext(ctx) != nil {
		t.Error("expected nil tx for wrong type")
	}
	ctx = context.WithValue(context.Background(), TenantIDKey, 12345)
	if TenantFromContext(ctx) != "" {
		t.Error("expected empty tenant for wrong type")
	}
}

func TestNopTxRunner(t *testing.T) {
	called := false
	err := NopTxRunner{}.RunInTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected fn to run without error, called=%v err=%v", called, err)
	}

	sentinel := errors.New("boom")
	if err := (NopTxRunner{}).RunInTx(context.Background(), func(context.Context) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}
