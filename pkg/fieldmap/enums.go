package fieldmap

import (
	"strings"
	"unicode"
)

// EnumKind names a family of enumerated values.
type EnumKind int

const (
	PaymentMethod EnumKind = iota
	TransactionStatus
	TransactionType
	DisputeStatus
	DisputeKind
	DeclarationStatus
	DeclarationAction
	DeclarantKind
	InvoiceStatus
)

// legacy maps folded, upper-snake spellings to canonical values. The
// canonical values themselves are added at init.
var legacy = map[EnumKind]map[string]string{
	PaymentMethod: {
		"ESPECES":           "cash",
		"ESPECE":            "cash",
		"CHEQUE":            "check",
		"VIREMENT":          "transfer",
		"VIREMENT_BANCAIRE": "transfer",
		"CARTE":             "card",
		"CARTE_BANCAIRE":    "card",
		"CB":                "card",
		"MOBILE_MONEY":      "mobile",
		"PAIEMENT_MOBILE":   "mobile",
	},
	TransactionStatus: {
		"INITIE":   "initiated",
		"INITIEE":  "initiated",
		"EN_COURS": "in_progress",
		"REUSSI":   "succeeded",
		"REUSSIE":  "succeeded",
		"SUCCES":   "succeeded",
		"SUCCESS":  "succeeded",
		"ECHEC":    "failed",
		"ECHOUE":   "failed",
		"ECHOUEE":  "failed",
	},
	TransactionType: {
		"REMBOURSEMENT":        "reimbursement",
		"PAIEMENT_PRESTATAIRE": "provider_payment",
		"PAIEMENT_FACTURE":     "invoice_payment",
	},
	DisputeStatus: {
		"OUVERT":   "open",
		"OUVERTE":  "open",
		"EN_COURS": "in_progress",
		"RESOLU":   "resolved",
		"RESOLUE":  "resolved",
		"CLOTURE":  "closed",
		"CLOTUREE": "closed",
		"FERME":    "closed",
	},
	DisputeKind: {
		"ERREUR_MONTANT":           "amount_error",
		"ERREUR_BENEFICIAIRE":      "wrong_beneficiary",
		"MAUVAIS_BENEFICIAIRE":     "wrong_beneficiary",
		"DOUBLE_PAIEMENT":          "duplicate_payment",
		"PAIEMENT_DOUBLE":          "duplicate_payment",
		"DOUBLON":                  "duplicate_payment",
		"PROBLEME_TECHNIQUE":       "technical_issue",
		"RETARD_PAIEMENT":          "late_payment",
		"PAIEMENT_EN_RETARD":       "late_payment",
		"PRESTATION_NON_EFFECTUEE": "service_not_rendered",
		"PRESTATION_NON_RENDUE":    "service_not_rendered",
		"FRAUDE_SUSPECTEE":         "suspected_fraud",
		"SUSPICION_FRAUDE":         "suspected_fraud",
	},
	DeclarationStatus: {
		"SOUMIS":  "submitted",
		"SOUMISE": "submitted",
		"VALIDE":  "validated",
		"VALIDEE": "validated",
		"REJETE":  "rejected",
		"REJETEE": "rejected",
		"PAYE":    "paid",
		"PAYEE":   "paid",
	},
	DeclarationAction: {
		"VALIDER":  "validate",
		"REJETER":  "reject",
		"VALIDATE": "validate",
		"REJECT":   "reject",
	},
	DeclarantKind: {
		"BENEFICIAIRE": "beneficiary",
		"ASSURE":       "beneficiary",
		"PRESTATAIRE":  "provider",
		"EMPLOYEUR":    "employer",
	},
	InvoiceStatus: {
		"EN_ATTENTE":          "pending",
		"IMPAYEE":             "pending",
		"PARTIELLEMENT_PAYEE": "partially_paid",
		"PARTIEL":             "partially_paid",
		"PARTIELLE":           "partially_paid",
		"PAYEE":               "paid",
		"PAYE":                "paid",
		"EN_RETARD":           "overdue",
	},
}

var canonical = map[EnumKind][]string{
	PaymentMethod:     {"cash", "check", "transfer", "card", "mobile"},
	TransactionStatus: {"initiated", "in_progress", "succeeded", "failed"},
	TransactionType:   {"reimbursement", "provider_payment", "invoice_payment"},
	DisputeStatus:     {"open", "in_progress", "resolved", "closed"},
	DisputeKind: {"amount_error", "wrong_beneficiary", "duplicate_payment", "technical_issue",
		"late_payment", "service_not_rendered", "suspected_fraud"},
	DeclarationStatus: {"submitted", "validated", "rejected", "paid"},
	DeclarationAction: {"validate", "reject"},
	DeclarantKind:     {"beneficiary", "provider", "employer"},
	InvoiceStatus:     {"pending", "partially_paid", "paid", "overdue"},
}

func init() {
	for kind, values := range canonical {
		for _, v := range values {
			legacy[kind][strings.ToUpper(v)] = v
		}
	}
}

// Enum maps a raw value of the given kind to its canonical spelling. Values
// it does not recognize come back folded to snake_case so the domain layer
// can reject them with a precise message.
func Enum(kind EnumKind, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	key := enumKey(raw)
	if v, ok := legacy[kind][key]; ok {
		return v
	}
	return strings.ToLower(key)
}

// EnumField resolves a field and maps it in one step.
func (f Fields) EnumField(a Aliases, kind EnumKind) string {
	return Enum(kind, f.String(a))
}

// enumKey folds accents and turns "inProgress", "en cours" or "en-cours"
// into "IN_PROGRESS" / "EN_COURS".
func enumKey(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range stripMarks(s) {
		switch {
		case r == ' ' || r == '-' || r == '.':
			b.WriteRune('_')
			prevLower = false
		case unicode.IsUpper(r) && prevLower:
			b.WriteRune('_')
			b.WriteRune(r)
			prevLower = false
		default:
			b.WriteRune(unicode.ToUpper(r))
			prevLower = unicode.IsLower(r)
		}
	}
	return b.String()
}
