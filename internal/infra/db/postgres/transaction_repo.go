package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `transaction_id, phone_number, package_id, amount, provider, status, failure_reason, refund_attempts, expiry, created_at, updated_at, completed_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	var status string
	if err := row.Scan(&t.TransactionID, &t.PhoneNumber, &t.PackageID, &t.Amount, &t.Provider, &status,
		&t.FailureReason, &t.RefundAttempts, &t.Expiry, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	t.Status = model.TransactionStatus(status)
	return t, nil
}

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	_, err := execSQL(ctx, r.pool, tx, q, t.TransactionID, t.PhoneNumber, t.PackageID, t.Amount, t.Provider,
		string(t.Status), t.FailureReason, t.RefundAttempts, t.Expiry, t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	return mapErr("save transaction", err)
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id=$1`
	if isLocking(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapErr("find transaction", err)
	}
	return t, nil
}

func (r *transactionRepo) FindActiveByPhone(ctx context.Context, tx repository.Tx, phone string, now time.Time) (*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions
WHERE phone_number=$1 AND status='SUCCESSFUL' AND expiry > $2
ORDER BY expiry DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, phone, now)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapErr("find active transaction", err)
	}
	return t, nil
}

func (r *transactionRepo) list(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) ([]*model.Transaction, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, t)
	}
	return out, mapErr(op, rows.Err())
}

func (r *transactionRepo) ListByPhone(ctx context.Context, tx repository.Tx, phone string) ([]*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE phone_number=$1 ORDER BY created_at DESC;`
	return r.list(ctx, tx, "list transactions by phone", q, phone)
}

func (r *transactionRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
	return r.list(ctx, tx, "list transactions", q, limit, offset)
}

func (r *transactionRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + transactionColumns + ` FROM transactions
WHERE status='SUCCESSFUL' AND expiry <= $1 ORDER BY expiry ASC LIMIT $2;`
	return r.list(ctx, tx, "list expired transactions", q, now, limit)
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + transactionColumns + ` FROM transactions
WHERE status='PENDING' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, "list pending transactions", q, olderThan, limit)
}

func (r *transactionRepo) ListRefundable(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + transactionColumns + ` FROM transactions
WHERE status='FAILED' AND failure_reason='provider_declined' AND updated_at < $1 AND refund_attempts < $3
ORDER BY updated_at ASC LIMIT $2;`
	return r.list(ctx, tx, "list refundable transactions", q, olderThan, limit, model.MaxRefundAttempts)
}

// Status-scoped updates: zero rows affected means the row already moved on.

func (r *transactionRepo) MarkSuccessful(ctx context.Context, tx repository.Tx, id string, expiry, completedAt time.Time) (bool, error) {
	const q = `
UPDATE transactions
   SET status='SUCCESSFUL', expiry=$2, completed_at=COALESCE(completed_at, $3), updated_at=NOW()
 WHERE transaction_id=$1 AND status='PENDING';`
	return r.exec(ctx, tx, "mark transaction successful", q, id, expiry, completedAt)
}

func (r *transactionRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, reason string, completedAt time.Time) (bool, error) {
	const q = `
UPDATE transactions
   SET status='FAILED', failure_reason=$2, completed_at=COALESCE(completed_at, $3), updated_at=NOW()
 WHERE transaction_id=$1 AND status='PENDING';`
	return r.exec(ctx, tx, "mark transaction failed", q, id, reason, completedAt)
}

func (r *transactionRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `UPDATE transactions SET status='EXPIRED', updated_at=NOW() WHERE transaction_id=$1 AND status='SUCCESSFUL';`
	return r.exec(ctx, tx, "mark transaction expired", q, id)
}

func (r *transactionRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `UPDATE transactions SET status='REFUNDED', updated_at=NOW() WHERE transaction_id=$1 AND status='FAILED';`
	return r.exec(ctx, tx, "mark transaction refunded", q, id)
}

func (r *transactionRepo) RecordRefundAttempt(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `
UPDATE transactions
   SET refund_attempts=refund_attempts+1, updated_at=NOW()
 WHERE transaction_id=$1 AND status='FAILED' AND failure_reason='provider_declined';`
	return r.exec(ctx, tx, "record refund attempt", q, id)
}

func (r *transactionRepo) exec(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) (bool, error) {
	cmd, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, mapErr(op, err)
	}
	return cmd.RowsAffected() >= 1, nil
}
