package payment

import (
	"testing"

	"github.com/claimsnet/claims/internal/platform/apperr"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		raw     string
		want    Method
		wantErr bool
	}{
		{"transfer", MethodTransfer, false},
		{"VIREMENT", MethodTransfer, false},
		{"Espèces", MethodCash, false},
		{"CHEQUE", MethodCheck, false},
		{"mobile_money", MethodMobile, false},
		{"", "", true},
		{"bitcoin", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.raw)
		if tt.wantErr {
			if !apperr.IsValidation(err) {
				t.Errorf("ParseMethod(%q): expected validation error, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMethod(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}
}
