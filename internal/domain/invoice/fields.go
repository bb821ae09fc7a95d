package invoice

import (
	"fmt"

	"github.com/claimsnet/claims/internal/domain/payment"
	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/pkg/fieldmap"
)

// FromFields builds an invoice from a request body in any accepted naming.
func FromFields(f fieldmap.Fields) (*Invoice, error) {
	inv := &Invoice{
		BeneficiaryID:   f.String(fieldmap.BeneficiaryID),
		BeneficiaryName: optional(f.String(fieldmap.BeneficiaryName)),
		PayerID:         optional(f.String(fieldmap.PayerID)),
		Notes:           optional(f.String(fieldmap.Notes)),
	}

	issue, err := f.Time(fieldmap.IssueDate)
	if err != nil {
		return nil, err
	}
	if issue != nil {
		inv.IssueDate = *issue
	}
	due, err := f.Time(fieldmap.DueDate)
	if err != nil {
		return nil, err
	}
	if due != nil {
		inv.DueDate = *due
	}

	for i, lf := range f.List(fieldmap.Lines) {
		l := Line{Label: lf.String(fieldmap.Label)}
		if l.Quantity, _, err = lf.Decimal(fieldmap.Quantity); err != nil {
			return nil, lineErr(i, err)
		}
		if l.UnitPrice, _, err = lf.Decimal(fieldmap.UnitPrice); err != nil {
			return nil, lineErr(i, err)
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, nil
}

// PaymentFromFields reads a payment. The method accepts legacy spellings.
func PaymentFromFields(f fieldmap.Fields) (*Payment, error) {
	amount, _, err := f.Decimal(fieldmap.Amount)
	if err != nil {
		return nil, err
	}
	method, err := payment.ParseMethod(f.String(fieldmap.Method))
	if err != nil {
		return nil, err
	}
	p := &Payment{
		Amount:    amount,
		Method:    method,
		Reference: optional(f.String(fieldmap.Reference)),
		Notes:     optional(f.String(fieldmap.Notes)),
	}
	paidAt, err := f.Time(fieldmap.PaidAt)
	if err != nil {
		return nil, err
	}
	if paidAt != nil {
		p.PaidAt = *paidAt
	}
	return p, nil
}

func lineErr(i int, err error) error {
	if ae, ok := err.(*apperr.Error); ok {
		return apperr.Validation(fmt.Sprintf("lines[%d].%s", i, ae.Field), "%s", ae.Message)
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
