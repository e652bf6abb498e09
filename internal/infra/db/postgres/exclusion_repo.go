package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
)

var _ repository.ExclusionRepository = (*exclusionRepo)(nil)

type exclusionRepo struct{ pool *pgxpool.Pool }

func NewExclusionRepo(pool *pgxpool.Pool) *exclusionRepo {
	return &exclusionRepo{pool: pool}
}

const exclusionColumns = `id, identifier_type, identifier_value, reason, exclude_from_payment, exclude_from_connection, created_at`

func scanExclusion(row pgx.Row) (*model.Exclusion, error) {
	e := &model.Exclusion{}
	var typ string
	if err := row.Scan(&e.ID, &typ, &e.Value, &e.Reason, &e.ExcludeFromPayment, &e.ExcludeFromConnection, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = model.IdentifierType(typ)
	return e, nil
}

func (r *exclusionRepo) Save(ctx context.Context, tx repository.Tx, e *model.Exclusion) error {
	const q = `
INSERT INTO exclusions (identifier_type, identifier_value, reason, exclude_from_payment, exclude_from_connection, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, string(e.Type), e.Value, e.Reason, e.ExcludeFromPayment, e.ExcludeFromConnection, e.CreatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&e.ID); err != nil {
		return mapErr("save exclusion", err)
	}
	return nil
}

func (r *exclusionRepo) FindByValue(ctx context.Context, tx repository.Tx, typ model.IdentifierType, value string) (*model.Exclusion, error) {
	const q = `SELECT ` + exclusionColumns + ` FROM exclusions WHERE identifier_type=$1 AND identifier_value=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, string(typ), value)
	if err != nil {
		return nil, err
	}
	e, err := scanExclusion(row)
	if err != nil {
		return nil, mapErr("find exclusion", err)
	}
	return e, nil
}

func (r *exclusionRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Exclusion, error) {
	const q = `SELECT ` + exclusionColumns + ` FROM exclusions ORDER BY created_at DESC, id DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr("list exclusions", err)
	}
	defer rows.Close()

	var out []*model.Exclusion
	for rows.Next() {
		e, err := scanExclusion(rows)
		if err != nil {
			return nil, mapErr("list exclusions", err)
		}
		out = append(out, e)
	}
	return out, mapErr("list exclusions", rows.Err())
}

func (r *exclusionRepo) Delete(ctx context.Context, tx repository.Tx, id int64) (*model.Exclusion, error) {
	const q = `DELETE FROM exclusions WHERE id=$1 RETURNING ` + exclusionColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	e, err := scanExclusion(row)
	if err != nil {
		return nil, mapErr("delete exclusion", err)
	}
	return e, nil
}
