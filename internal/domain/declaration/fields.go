package declaration

import (
	"fmt"

	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/pkg/fieldmap"
)

// FromFields builds a declaration from a request body in any accepted naming.
func FromFields(f fieldmap.Fields) (*Declaration, error) {
	d := &Declaration{
		BeneficiaryID: f.String(fieldmap.BeneficiaryID),
		DeclarantType: DeclarantType(f.EnumField(fieldmap.DeclarantType, fieldmap.DeclarantKind)),
		DeclarantName: f.String(fieldmap.DeclarantName),
		Attachments:   f.Strings(fieldmap.Attachments),
	}

	var err error
	if d.TotalAmount, _, err = f.Decimal(fieldmap.TotalAmount); err != nil {
		return nil, err
	}
	if d.TotalAmount.IsZero() {
		if d.TotalAmount, _, err = f.Decimal(fieldmap.Amount); err != nil {
			return nil, err
		}
	}

	for i, lf := range f.List(fieldmap.Lines) {
		l := Line{Type: lf.String(fieldmap.LineType), Label: lf.String(fieldmap.Label)}
		if l.Quantity, _, err = lf.Decimal(fieldmap.Quantity); err != nil {
			return nil, lineErr(i, err)
		}
		if l.UnitPrice, _, err = lf.Decimal(fieldmap.UnitPrice); err != nil {
			return nil, lineErr(i, err)
		}
		if l.ServiceDate, err = lf.Time(fieldmap.ServiceDate); err != nil {
			return nil, lineErr(i, err)
		}
		if l.Type == "" {
			l.Type = "service"
		}
		d.Lines = append(d.Lines, l)
	}
	return d, nil
}

func lineErr(i int, err error) error {
	if ae, ok := err.(*apperr.Error); ok {
		return apperr.Validation(fmt.Sprintf("lines[%d].%s", i, ae.Field), "%s", ae.Message)
	}
	return err
}
