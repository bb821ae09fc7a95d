// Package fieldmap turns loosely-shaped request bodies into canonical values.
//
// Clients of the claims API send the same field under several names: the
// camelCase API name, its snake_case twin, or the legacy uppercase column
// (COD_DECL, MONTANT, METHODE...). Handlers decode the body once into Fields
// and resolve each canonical field from its ordered alias list, so domain
// types never see the alternative spellings.
package fieldmap

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/claimsnet/claims/internal/platform/apperr"
)

// Aliases lists the accepted names of one field. The first is canonical.
type Aliases []string

func (a Aliases) Name() string {
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

var (
	DeclarationID   = Aliases{"declarationId", "declaration_id", "COD_DECL"}
	TransactionID   = Aliases{"transactionId", "transaction_id", "COD_TRANS", "COD_TRX"}
	InvoiceID       = Aliases{"invoiceId", "invoice_id", "COD_FACT"}
	BeneficiaryID   = Aliases{"beneficiaryId", "beneficiary_id", "COD_BEN"}
	PayerID         = Aliases{"payerId", "payer_id", "cod_payeur", "COD_PAYEUR"}
	BeneficiaryName = Aliases{"beneficiaryName", "beneficiary_name", "NOM_BEN", "nom_beneficiaire"}
	Amount          = Aliases{"amount", "montant", "MONTANT"}
	TotalAmount     = Aliases{"totalAmount", "total_amount", "MONTANT_TOTAL", "montant_total"}
	Method          = Aliases{"method", "paymentMethod", "payment_method", "METHODE", "methode"}
	Status          = Aliases{"status", "statut", "STATUT"}
	Resolution      = Aliases{"resolution", "RESOLUTION"}
	Action          = Aliases{"action", "ACTION"}
	Reason          = Aliases{"reason", "motif", "MOTIF", "failureReason", "failure_reason"}
	Description     = Aliases{"description", "DESCRIPTION"}
	DisputeType     = Aliases{"type", "disputeType", "TYPE_LITIGE", "TYPE"}
	BankReference   = Aliases{"bankReference", "bank_reference", "REF_BANCAIRE"}
	Reference       = Aliases{"reference", "REFERENCE"}
	Notes           = Aliases{"notes", "NOTES", "observations"}
	Currency        = Aliases{"currency", "devise", "DEVISE"}
	DeclarantType   = Aliases{"declarantType", "declarant_type", "TYPE_DECLARANT"}
	DeclarantName   = Aliases{"declarantName", "declarant_name", "NOM_DECLARANT"}
	Attachments     = Aliases{"attachments", "pieces_jointes", "PIECES_JOINTES"}
	Lines           = Aliases{"lines", "lignes", "items", "LIGNES"}
	LineType        = Aliases{"type", "lineType", "TYPE_PRESTATION"}
	Label           = Aliases{"label", "libelle", "LIBELLE"}
	Quantity        = Aliases{"quantity", "quantite", "QUANTITE"}
	UnitPrice       = Aliases{"unitPrice", "unit_price", "prix_unitaire", "PRIX_UNITAIRE"}
	ServiceDate     = Aliases{"serviceDate", "service_date", "DATE_PRESTATION"}
	IssueDate       = Aliases{"issueDate", "issue_date", "DATE_EMISSION"}
	DueDate         = Aliases{"dueDate", "due_date", "DATE_ECHEANCE"}
	PaidAt          = Aliases{"paidAt", "paid_at", "paymentDate", "DATE_PAIEMENT"}
	From            = Aliases{"from", "dateDebut", "date_debut", "DATE_DEBUT"}
	To              = Aliases{"to", "dateFin", "date_fin", "DATE_FIN"}
	Type            = Aliases{"type", "transactionType", "TYPE_TRANSACTION", "TYPE"}
	Encoding        = Aliases{"encoding", "charset"}
	Search          = Aliases{"search", "q", "recherche"}
)

// Fields is a decoded request body.
type Fields map[string]interface{}

// Decode reads a JSON object. Numbers stay json.Number so amounts keep
// their exact decimal text.
func Decode(r io.Reader) (Fields, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	f := Fields{}
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return f, nil
		}
		return nil, apperr.Validation("", "malformed JSON body: %v", err)
	}
	return f, nil
}

// Bind decodes the request body of c.
func Bind(c echo.Context) (Fields, error) {
	return Decode(c.Request().Body)
}

// Query exposes the query string of c as Fields, first value per name.
func Query(c echo.Context) Fields {
	f := Fields{}
	for name, values := range c.QueryParams() {
		if len(values) > 0 && values[0] != "" {
			f[name] = values[0]
		}
	}
	return f
}

// Lookup returns the first non-null value among the aliases.
func (f Fields) Lookup(a Aliases) (interface{}, bool) {
	for _, name := range a {
		if v, ok := f[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (f Fields) Has(a Aliases) bool {
	_, ok := f.Lookup(a)
	return ok
}

// String returns the field as trimmed text. Numbers are rendered verbatim.
func (f Fields) String(a Aliases) string {
	v, ok := f.Lookup(a)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Amounts are stored as NUMERIC(18,4).
const (
	maxIntegerDigits  = 14
	maxFractionDigits = 4
	maxNumberLength   = 40
)

// Decimal parses an amount given as a JSON number or a numeric string.
// Comma decimal separators ("1500,50") are accepted. Values that do not fit
// the stored precision are rejected.
func (f Fields) Decimal(a Aliases) (decimal.Decimal, bool, error) {
	s := f.String(a)
	if s == "" {
		return decimal.Zero, false, nil
	}
	s = strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", ".")
	if len(s) > maxNumberLength {
		return decimal.Zero, true, apperr.Validation(a.Name(), "is out of range")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, true, apperr.Validation(a.Name(), "must be a number")
	}
	if !inRange(d) {
		return decimal.Zero, true, apperr.Validation(a.Name(), "is out of range")
	}
	return d, true, nil
}

// inRange checks the exponent before any arithmetic: rescaling a value like
// 1e400000000 would not finish.
func inRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp > maxIntegerDigits || exp < -maxNumberLength {
		return false
	}
	if d.NumDigits()+int(exp) > maxIntegerDigits {
		return false
	}
	return exp >= -maxFractionDigits || d.Equal(d.Truncate(maxFractionDigits))
}

// UUID parses an optional identifier.
func (f Fields) UUID(a Aliases) (*uuid.UUID, error) {
	s := f.String(a)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, apperr.Validation(a.Name(), "must be a valid identifier")
	}
	return &id, nil
}

// Time parses RFC 3339 timestamps or plain YYYY-MM-DD dates.
func (f Fields) Time(a Aliases) (*time.Time, error) {
	s := f.String(a)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation(a.Name(), "must be a date (YYYY-MM-DD)")
}

// Range reads an optional [from, to) period. A date-only upper bound covers
// that whole day.
func (f Fields) Range(from, to Aliases) (*time.Time, *time.Time, error) {
	start, err := f.Time(from)
	if err != nil {
		return nil, nil, err
	}
	end, err := f.Time(to)
	if err != nil {
		return nil, nil, err
	}
	if end != nil && len(f.String(to)) == len("2006-01-02") {
		next := end.AddDate(0, 0, 1)
		end = &next
	}
	if start != nil && end != nil && !start.Before(*end) {
		return nil, nil, apperr.Validation(to.Name(), "must be after %s", from.Name())
	}
	return start, end, nil
}

// Strings returns a list field. A single string is treated as a one-element list.
func (f Fields) Strings(a Aliases) []string {
	v, ok := f.Lookup(a)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{strings.TrimSpace(t)}
	}
	return nil
}

// List returns nested objects, such as invoice or declaration lines.
func (f Fields) List(a Aliases) []Fields {
	v, ok := f.Lookup(a)
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Fields, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, Fields(m))
		}
	}
	return out
}
