package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claimsnet/claims/internal/platform/apperr"
	"github.com/claimsnet/claims/internal/platform/db"
	"github.com/claimsnet/claims/pkg/fieldmap"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const invoiceCols = `id, number, beneficiary_id, beneficiary_name, payer_id,
	issue_date, due_date, total_amount, amount_paid, amount_remaining,
	status, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.BeneficiaryID, &inv.BeneficiaryName, &inv.PayerID,
		&inv.IssueDate, &inv.DueDate, &inv.TotalAmount, &inv.AmountPaid, &inv.AmountRemaining,
		&inv.Status, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("invoice")
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	q := r.conn(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO invoices (id, number, beneficiary_id, beneficiary_name, payer_id,
			issue_date, due_date, total_amount, amount_paid, amount_remaining,
			status, notes, search_text, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		inv.ID, inv.Number, inv.BeneficiaryID, inv.BeneficiaryName, inv.PayerID,
		inv.IssueDate, inv.DueDate, inv.TotalAmount, inv.AmountPaid, inv.AmountRemaining,
		inv.Status, inv.Notes, inv.SearchText(), inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}

	for i := range inv.Lines {
		l := &inv.Lines[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO invoice_lines (id, invoice_id, label, quantity, unit_price, line_total, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			l.ID, inv.ID, l.Label, l.Quantity, l.UnitPrice, l.LineTotal, i); err != nil {
			return fmt.Errorf("insert invoice line: %w", err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) get(ctx context.Context, sql string, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, sql, id))
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, label, quantity, unit_price, line_total
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inv.Lines = []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Label, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, rows.Err()
}

func (r *repoPG) List(ctx context.Context, f Filter, today time.Time, limit, offset int) ([]*Invoice, int, error) {
	var where []string
	var args []interface{}
	switch f.Status {
	case "":
	case StatusOverdue:
		args = append(args, today)
		where = append(where, fmt.Sprintf("status <> 'paid' AND due_date < $%d::date", len(args)))
	default:
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.PayerID != "" {
		args = append(args, f.PayerID)
		where = append(where, fmt.Sprintf("payer_id = $%d", len(args)))
	}
	if term := fieldmap.Fold(strings.TrimSpace(f.Search)); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		where = append(where, fmt.Sprintf("search_text LIKE $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM invoices%s ORDER BY issue_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		invoiceCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *repoPG) UpdateBalance(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET amount_paid=$2, amount_remaining=$3, status=$4, updated_at=$5
		WHERE id = $1`,
		inv.ID, inv.AmountPaid, inv.AmountRemaining, inv.Status, inv.UpdatedAt)
	return err
}

func (r *repoPG) AddPayment(ctx context.Context, p *Payment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, invoice_id, amount, paid_at, method, reference, notes, recorded_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.InvoiceID, p.Amount, p.PaidAt, p.Method, p.Reference, p.Notes, p.RecordedBy, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *repoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, amount, paid_at, method, reference, notes, recorded_by, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY paid_at, created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaidAt, &p.Method,
			&p.Reference, &p.Notes, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

func (r *repoPG) Totals(ctx context.Context, from, to *time.Time, today time.Time) (*Totals, error) {
	t := &Totals{}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(total_amount), 0),
			COALESCE(SUM(amount_paid), 0),
			COALESCE(SUM(amount_remaining), 0),
			COUNT(*) FILTER (WHERE status <> 'paid' AND due_date < $3::date)
		FROM invoices
		WHERE ($1::timestamptz IS NULL OR issue_date >= $1)
		  AND ($2::timestamptz IS NULL OR issue_date < $2)`,
		from, to, today).Scan(&t.Count, &t.Billed, &t.Paid, &t.Outstanding, &t.OverdueCount)
	if err != nil {
		return nil, fmt.Errorf("invoice totals: %w", err)
	}
	return t, nil
}
