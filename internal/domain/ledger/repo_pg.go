package ledger

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
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const trxCols = `id, reference, type, beneficiary_id, amount, currency, payment_method, status,
	declaration_id, invoice_id, bank_reference, failure_reason, initiated_by,
	initiated_at, executed_at, updated_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Reference, &t.Type, &t.BeneficiaryID, &t.Amount, &t.Currency, &t.Method, &t.Status,
		&t.DeclarationID, &t.InvoiceID, &t.BankReference, &t.FailureReason, &t.InitiatedBy,
		&t.InitiatedAt, &t.ExecutedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("transaction")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Transaction) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO transactions (id, reference, type, beneficiary_id, amount, currency, payment_method, status,
			declaration_id, invoice_id, initiated_by, initiated_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.Reference, t.Type, t.BeneficiaryID, t.Amount, t.Currency, t.Method, t.Status,
		t.DeclarationID, t.InvoiceID, t.InitiatedBy, t.InitiatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return scanTransaction(r.conn(ctx).QueryRow(ctx, `SELECT `+trxCols+` FROM transactions WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return scanTransaction(r.conn(ctx).QueryRow(ctx, `SELECT `+trxCols+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
}

func whereClause(f Filter) (string, []interface{}) {
	var where []string
	var args []interface{}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("initiated_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("initiated_at < $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.DeclarationID != nil {
		args = append(args, *f.DeclarationID)
		where = append(where, fmt.Sprintf("declaration_id = $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Transaction, int, error) {
	clause, args := whereClause(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY initiated_at DESC LIMIT $%d OFFSET $%d`,
		trxCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) Each(ctx context.Context, f Filter, fn func(*Transaction) error) error {
	clause, args := whereClause(f)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+trxCols+` FROM transactions`+clause+` ORDER BY initiated_at`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *repoPG) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]*Transaction, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+trxCols+` FROM transactions WHERE declaration_id = $1 ORDER BY initiated_at`, declarationID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Transaction, error) {
	defer rows.Close()
	items := []*Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, t *Transaction, from Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE transactions SET status=$3, bank_reference=$4, failure_reason=$5, executed_at=$6, updated_at=$7
		WHERE id = $1 AND status = $2`,
		t.ID, from, t.Status, t.BankReference, t.FailureReason, t.ExecutedAt, t.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) Summarize(ctx context.Context, from, to *time.Time) ([]Summary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, type, COUNT(*), COALESCE(SUM(amount), 0) FROM transactions
		WHERE ($1::timestamptz IS NULL OR initiated_at >= $1)
		  AND ($2::timestamptz IS NULL OR initiated_at < $2)
		GROUP BY status, type
		ORDER BY status, type`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Status, &s.Type, &s.Count, &s.Amount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
