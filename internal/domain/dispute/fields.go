package dispute

import (
	"github.com/claimsnet/claims/pkg/fieldmap"
)

// FromFields reads a new dispute. Links that are absent stay nil.
func FromFields(f fieldmap.Fields) (*Dispute, error) {
	trxID, err := f.UUID(fieldmap.TransactionID)
	if err != nil {
		return nil, err
	}
	declID, err := f.UUID(fieldmap.DeclarationID)
	if err != nil {
		return nil, err
	}
	d := &Dispute{
		TransactionID: trxID,
		DeclarationID: declID,
		Type:          Type(f.EnumField(fieldmap.DisputeType, fieldmap.DisputeKind)),
		Action:        f.String(fieldmap.Action),
		Description:   f.String(fieldmap.Description),
	}
	if ben := f.String(fieldmap.BeneficiaryID); ben != "" {
		d.BeneficiaryID = &ben
	}
	return d, nil
}

// ResolutionFromFields reads a {STATUT, RESOLUTION, ACTION} update.
func ResolutionFromFields(f fieldmap.Fields) Resolution {
	return Resolution{
		Status:     Status(f.EnumField(fieldmap.Status, fieldmap.DisputeStatus)),
		Resolution: f.String(fieldmap.Resolution),
		Action:     f.String(fieldmap.Action),
	}
}
