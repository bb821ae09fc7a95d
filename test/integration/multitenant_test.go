package integration

import (
	"context"
	"testing"

	"github.com/claimsnet/claims/internal/domain/declaration"
	"github.com/claimsnet/claims/internal/platform/apperr"
)

func TestMultiTenantIsolation(t *testing.T) {
	ctx := context.Background()
	tenantA := uniqueTenantID("tenanta")
	tenantB := uniqueTenantID("tenantb")
	createTenantSchema(t, ctx, tenantA)
	createTenantSchema(t, ctx, tenantB)
	svc := newDeclarationService()

	var inA *declaration.Declaration
	err := withTenant(ctx, tenantA, func(ctx context.Context) error {
		inA = submitDeclaration(t, ctx, svc, "BEN-A1")
		submitDeclaration(t, ctx, svc, "BEN-A2")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = withTenant(ctx, tenantB, func(ctx context.Context) error {
		submitDeclaration(t, ctx, svc, "BEN-B1")

		_, total, err := svc.List(ctx, declaration.Filter{})
		if err != nil {
			return err
		}
		if total != 1 {
			t.Errorf("expected 1 declaration in tenant B, got %d", total)
		}
		if _, err := svc.Get(ctx, inA.ID); !apperr.IsNotFound(err) {
			t.Errorf("expected tenant A declaration to be invisible from tenant B, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = withTenant(ctx, tenantA, func(ctx context.Context) error {
		_, total, err := svc.List(ctx, declaration.Filter{})
		if err != nil {
			return err
		}
		if total != 2 {
			t.Errorf("expected 2 declarations in tenant A, got %d", total)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
