// Package payment holds the vocabulary shared by invoice payments and
// ledger transactions.
package payment

import (
	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/pkg/fieldmap"
)

type Method string

const (
	MethodCash     Method = "cash"
	MethodCheck    Method = "check"
	MethodTransfer Method = "transfer"
	MethodCard     Method = "card"
	MethodMobile   Method = "mobile"
)

var Methods = []Method{MethodCash, MethodCheck, MethodTransfer, MethodCard, MethodMobile}

func (m Method) Valid() bool {
	for _, v := range Methods {
		if m == v {
			return true
		}
	}
	return false
}

// ParseMethod accepts canonical and legacy spellings ("VIREMENT", "Espèces").
func ParseMethod(raw string) (Method, error) {
	m := Method(fieldmap.Enum(fieldmap.PaymentMethod, raw))
	if m == "" {
		return "", apperr.Validation("method", "is required")
	}
	if !m.Valid() {
		return "", apperr.Validation("method", "unknown payment method %q", raw)
	}
	return m, nil
}
