package repository

import (
	"context"
	"time"

	"captive-portal/internal/domain/model"
)

// TransactionRepository persists purchase attempts. Rows are append-only: there is no delete.
//
// The Mark* methods are conditional on the current status and report whether a row
// was updated. false with a nil error means another actor already moved the row on.
type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	// FindByID locks the row FOR UPDATE when tx is a live transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	FindActiveByPhone(ctx context.Context, tx Tx, phone string, now time.Time) (*model.Transaction, error)
	ListByPhone(ctx context.Context, tx Tx, phone string) ([]*model.Transaction, error)
	List(ctx context.Context, tx Tx, limit, offset int) ([]*model.Transaction, error)

	// ListExpired returns SUCCESSFUL rows whose expiry is at or before now.
	ListExpired(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Transaction, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
	// ListRefundable returns FAILED rows declined by the provider, last touched before the
	// cutoff and with fewer than model.MaxRefundAttempts failed refunds, least recently touched first.
	ListRefundable(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)

	MarkSuccessful(ctx context.Context, tx Tx, id string, expiry, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx Tx, id string, reason string, completedAt time.Time) (bool, error)
	MarkExpired(ctx context.Context, tx Tx, id string) (bool, error)
	MarkRefunded(ctx context.Context, tx Tx, id string) (bool, error)
	// RecordRefundAttempt counts a failed refund and touches updated_at so the row
	// moves to the back of the ListRefundable queue.
	RecordRefundAttempt(ctx context.Context, tx Tx, id string) (bool, error)
}
