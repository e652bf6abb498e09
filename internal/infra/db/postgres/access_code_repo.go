package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
)

var _ repository.AccessCodeRepository = (*accessCodeRepo)(nil)

type accessCodeRepo struct{ pool *pgxpool.Pool }

func NewAccessCodeRepo(pool *pgxpool.Pool) *accessCodeRepo {
	return &accessCodeRepo{pool: pool}
}

const accessCodeColumns = `code, plan_id, duration_hours, price, status, mac_address, created_at, used_at, activated_at, expiry`

func scanAccessCode(row pgx.Row) (*model.AccessCode, error) {
	c := &model.AccessCode{}
	var status string
	if err := row.Scan(&c.Code, &c.PlanID, &c.DurationHours, &c.Price, &status, &c.MACAddress,
		&c.CreatedAt, &c.UsedAt, &c.ActivatedAt, &c.Expiry); err != nil {
		return nil, err
	}
	c.Status = model.AccessCodeStatus(status)
	return c, nil
}

// Insert relies on the UNIQUE constraint on code; a collision inserts nothing and reports false.
func (r *accessCodeRepo) Insert(ctx context.Context, tx repository.Tx, c *model.AccessCode) (bool, error) {
	const q = `
INSERT INTO access_codes (code, plan_id, duration_hours, price, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (code) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, c.Code, c.PlanID, c.DurationHours, c.Price, string(c.Status), c.CreatedAt)
	if err != nil {
		return false, mapErr("insert access code", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *accessCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.AccessCode, error) {
	q := `SELECT ` + accessCodeColumns + ` FROM access_codes WHERE code=$1`
	if isLocking(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	c, err := scanAccessCode(row)
	if err != nil {
		return nil, mapErr("find access code", err)
	}
	return c, nil
}

func (r *accessCodeRepo) Count(ctx context.Context, tx repository.Tx) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM access_codes;`)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, mapErr("count access codes", err)
	}
	return n, nil
}

func (r *accessCodeRepo) MarkUsed(ctx context.Context, tx repository.Tx, code, mac string, now, expiry time.Time) (bool, error) {
	const q = `
UPDATE access_codes
   SET status='used', mac_address=$2, used_at=$3, activated_at=$3, expiry=$4
 WHERE code=$1 AND status='unused';`
	return r.exec(ctx, tx, "mark access code used", q, code, mac, now, expiry)
}

func (r *accessCodeRepo) MarkPending(ctx context.Context, tx repository.Tx, code, mac string, now time.Time) (bool, error) {
	const q = `
UPDATE access_codes
   SET status='pending', mac_address=$2, used_at=$3
 WHERE code=$1 AND status='unused';`
	return r.exec(ctx, tx, "mark access code pending", q, code, mac, now)
}

func (r *accessCodeRepo) MarkActivated(ctx context.Context, tx repository.Tx, code string, now, expiry time.Time) (bool, error) {
	const q = `
UPDATE access_codes
   SET status='activated', activated_at=$2, expiry=$3
 WHERE code=$1 AND status='pending';`
	return r.exec(ctx, tx, "mark access code activated", q, code, now, expiry)
}

func (r *accessCodeRepo) MarkExpired(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	const q = `UPDATE access_codes SET status='expired' WHERE code=$1 AND status IN ('used','activated');`
	return r.exec(ctx, tx, "mark access code expired", q, code)
}

func (r *accessCodeRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.AccessCode, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + accessCodeColumns + ` FROM access_codes
WHERE status IN ('used','activated') AND expiry <= $1 ORDER BY expiry ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, mapErr("list expired access codes", err)
	}
	defer rows.Close()

	var out []*model.AccessCode
	for rows.Next() {
		c, err := scanAccessCode(rows)
		if err != nil {
			return nil, mapErr("list expired access codes", err)
		}
		out = append(out, c)
	}
	return out, mapErr("list expired access codes", rows.Err())
}

func (r *accessCodeRepo) exec(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) (bool, error) {
	cmd, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, mapErr(op, err)
	}
	return cmd.RowsAffected() >= 1, nil
}
