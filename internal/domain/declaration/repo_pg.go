package declaration

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

const declCols = `id, number, beneficiary_id, declarant_type, declarant_name,
	total_amount, covered_amount, copay_amount, reimbursable_amount, coverage_rate,
	status, rejection_reason, attachments,
	validated_at, validated_by, rejected_at, rejected_by, paid_at,
	created_at, updated_at`

func scanDeclaration(row pgx.Row) (*Declaration, error) {
	var d Declaration
	err := row.Scan(&d.ID, &d.Number, &d.BeneficiaryID, &d.DeclarantType, &d.DeclarantName,
		&d.TotalAmount, &d.CoveredAmount, &d.CopayAmount, &d.ReimbursableAmount, &d.CoverageRate,
		&d.Status, &d.RejectionReason, &d.Attachments,
		&d.ValidatedAt, &d.ValidatedBy, &d.RejectedAt, &d.RejectedBy, &d.PaidAt,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("declaration")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Declaration) error {
	q := r.conn(ctx)
	if d.Attachments == nil {
		d.Attachments = []string{}
	}
	_, err := q.Exec(ctx, `
		INSERT INTO declarations (id, number, beneficiary_id, declarant_type, declarant_name,
			total_amount, covered_amount, copay_amount, reimbursable_amount, coverage_rate,
			status, attachments, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		d.ID, d.Number, d.BeneficiaryID, d.DeclarantType, d.DeclarantName,
		d.TotalAmount, d.CoveredAmount, d.CopayAmount, d.ReimbursableAmount, d.CoverageRate,
		d.Status, d.Attachments, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert declaration: %w", err)
	}

	for i := range d.Lines {
		l := &d.Lines[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO declaration_lines (id, declaration_id, line_type, label, quantity, unit_price, service_date, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			l.ID, d.ID, l.Type, l.Label, l.Quantity, l.UnitPrice, l.ServiceDate, i); err != nil {
			return fmt.Errorf("insert declaration line: %w", err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Declaration, error) {
	return r.get(ctx, `SELECT `+declCols+` FROM declarations WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Declaration, error) {
	return r.get(ctx, `SELECT `+declCols+` FROM declarations WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) get(ctx context.Context, sql string, id uuid.UUID) (*Declaration, error) {
	d, err := scanDeclaration(r.conn(ctx).QueryRow(ctx, sql, id))
	if err != nil {
		return nil, err
	}
	if d.Lines, err = r.lines(ctx, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repoPG) lines(ctx context.Context, declID uuid.UUID) ([]Line, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, line_type, label, quantity, unit_price, service_date
		FROM declaration_lines WHERE declaration_id = $1 ORDER BY position`, declID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.Type, &l.Label, &l.Quantity, &l.UnitPrice, &l.ServiceDate); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Declaration, int, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.BeneficiaryID != "" {
		args = append(args, f.BeneficiaryID)
		where = append(where, fmt.Sprintf("beneficiary_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM declarations`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`SELECT %s FROM declarations%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		declCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Declaration{}
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, d *Declaration, from Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE declarations SET status=$3, rejection_reason=$4,
			validated_at=$5, validated_by=$6, rejected_at=$7, rejected_by=$8, paid_at=$9,
			updated_at=$10
		WHERE id = $1 AND status = $2`,
		d.ID, from, d.Status, d.RejectionReason,
		d.ValidatedAt, d.ValidatedBy, d.RejectedAt, d.RejectedBy, d.PaidAt,
		d.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) CountByStatus(ctx context.Context, from, to *time.Time) (map[Status]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM declarations
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		GROUP BY status`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int, len(Statuses))
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}
