package ledger

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/claimsnet/claims/internal/platform/apperr"
)

const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
)

var exportHeader = []string{
	"reference", "type", "beneficiary", "amount", "currency", "method", "status",
	"initiated_at", "executed_at", "bank_reference", "declaration_id",
}

// NormalizeEncoding maps the accepted spellings of an export encoding to
// EncodingUTF8 or EncodingWindows1252.
func NormalizeEncoding(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "windows-1252", "cp1252", "latin1", "iso-8859-1":
		return EncodingWindows1252, nil
	}
	return "", apperr.Validation("encoding", "unsupported encoding %q", raw)
}

// Export writes every transaction matching f as CSV. Characters that
// windows-1252 cannot represent are replaced.
func (s *Service) Export(ctx context.Context, f Filter, w io.Writer, enc string) error {
	if err := f.Validate(); err != nil {
		return err
	}
	enc, err := NormalizeEncoding(enc)
	if err != nil {
		return err
	}

	out := w
	var tw *transform.Writer
	if enc == EncodingWindows1252 {
		tw = transform.NewWriter(w, encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()))
		out = tw
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	err = s.repo.Each(ctx, f, func(t *Transaction) error {
		return cw.Write(exportRow(t))
	})
	if err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

func exportRow(t *Transaction) []string {
	row := []string{
		t.Reference,
		string(t.Type),
		t.BeneficiaryID,
		t.Amount.String(),
		t.Currency,
		string(t.Method),
		string(t.Status),
		t.InitiatedAt.UTC().Format(time.RFC3339),
		"",
		deref(t.BankReference),
		"",
	}
	if t.ExecutedAt != nil {
		row[8] = t.ExecutedAt.UTC().Format(time.RFC3339)
	}
	if t.DeclarationID != nil {
		row[10] = t.DeclarationID.String()
	}
	return row
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
