package dispute

import (
	"context"
	"errors"
	"fmt"
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

const disputeCols = `id, transaction_id, declaration_id, beneficiary_id, type, action, description,
	status, resolution, opened_by, opened_at, resolved_at, resolved_by, updated_at`

func scanDispute(row pgx.Row) (*Dispute, error) {
	var d Dispute
	err := row.Scan(&d.ID, &d.TransactionID, &d.DeclarationID, &d.BeneficiaryID, &d.Type, &d.Action, &d.Description,
		&d.Status, &d.Resolution, &d.OpenedBy, &d.OpenedAt, &d.ResolvedAt, &d.ResolvedBy, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("dispute")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Dispute) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO disputes (id, transaction_id, declaration_id, beneficiary_id, type, action, description,
			status, opened_by, opened_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.TransactionID, d.DeclarationID, d.BeneficiaryID, d.Type, d.Action, d.Description,
		d.Status, d.OpenedBy, d.OpenedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	return scanDispute(r.conn(ctx).QueryRow(ctx, `SELECT `+disputeCols+` FROM disputes WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	return scanDispute(r.conn(ctx).QueryRow(ctx, `SELECT `+disputeCols+` FROM disputes WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) List(ctx context.Context, f Filter, limit int) ([]*Dispute, error) {
	var rows pgx.Rows
	var err error
	if f.Status != "" {
		rows, err = r.conn(ctx).Query(ctx, `SELECT `+disputeCols+` FROM disputes WHERE status = $1 ORDER BY opened_at DESC LIMIT $2`, f.Status, limit)
	} else {
		rows, err = r.conn(ctx).Query(ctx, `SELECT `+disputeCols+` FROM disputes ORDER BY opened_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) ListByDeclaration(ctx context.Context, declarationID uuid.UUID) ([]*Dispute, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+disputeCols+` FROM disputes WHERE declaration_id = $1 ORDER BY opened_at`, declarationID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Dispute, error) {
	defer rows.Close()
	items := []*Dispute{}
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, d *Dispute, from Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE disputes SET status=$3, resolution=$4, action=$5, resolved_at=$6, resolved_by=$7, updated_at=$8
		WHERE id = $1 AND status = $2`,
		d.ID, from, d.Status, d.Resolution, d.Action, d.ResolvedAt, d.ResolvedBy, d.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) Stats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM disputes
		WHERE ($1::timestamptz IS NULL OR opened_at >= $1)
		  AND ($2::timestamptz IS NULL OR opened_at < $2)
		GROUP BY status`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &Stats{}
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		st.Add(s, n)
	}
	return st, rows.Err()
}
