package declaration

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusSubmitted, StatusValidated, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusValidated, StatusPaid, true},
		{StatusSubmitted, StatusPaid, false},
		{StatusValidated, StatusRejected, false},
		{StatusRejected, StatusSubmitted, false},
		{StatusRejected, StatusValidated, false},
		{StatusPaid, StatusValidated, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestComputeAmounts_Property(t *testing.T) {
	rate := decimal.RequireFromString("0.8")
	for _, total := range []int64{1, 7, 99, 1500, 10000, 123457} {
		d := &Declaration{TotalAmount: decimal.NewFromInt(total), CoverageRate: rate}
		d.ComputeAmounts(0)
		want := decimal.NewFromInt(total).Mul(rate).Round(0)
		if !d.CoveredAmount.Equal(want) {
			t.Errorf("total %d: covered %s, want %s", total, d.CoveredAmount, want)
		}
		if !d.ReimbursableAmount.Equal(d.CoveredAmount) {
			t.Errorf("total %d: reimbursable differs from covered", total)
		}
		if !d.CopayAmount.Add(d.CoveredAmount).Equal(d.TotalAmount) {
			t.Errorf("total %d: copay + covered != total", total)
		}
	}
}

func TestComputeAmounts_Scale(t *testing.T) {
	d := &Declaration{TotalAmount: decimal.RequireFromString("10.55"), CoverageRate: decimal.RequireFromString("0.8")}
	d.ComputeAmounts(2)
	if d.CoveredAmount.String() != "8.44" {
		t.Errorf("expected 8.44, got %s", d.CoveredAmount)
	}
}

func TestNewNumber(t *testing.T) {
	n := NewNumber(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), uuid.MustParse("abcdef12-3456-7890-abcd-ef1234567890"))
	if n != "DEC-20260105-ABCDEF" {
		t.Errorf("unexpected number %s", n)
	}
	if !regexp.MustCompile(`^DEC-\d{8}-[0-9A-F]{6}$`).MatchString(NewNumber(time.Now(), uuid.New())) {
		t.Error("number does not match format")
	}
}

func TestActionTarget(t *testing.T) {
	if s, ok := ActionValidate.Target(); !ok || s != StatusValidated {
		t.Error("validate should target validated")
	}
	if s, ok := ActionReject.Target(); !ok || s != StatusRejected {
		t.Error("reject should target rejected")
	}
	if _, ok := Action("pay").Target(); ok {
		t.Error("pay is not a manual action")
	}
}
