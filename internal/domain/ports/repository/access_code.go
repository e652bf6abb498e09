package repository

import (
	"context"
	"time"

	"captive-portal/internal/domain/model"
)

// AccessCodeRepository persists prepaid codes. Status only moves forward and rows are never deleted.
type AccessCodeRepository interface {
	// Insert stores a new unused code. It returns false when the code value is already taken.
	Insert(ctx context.Context, tx Tx, code *model.AccessCode) (bool, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.AccessCode, error)
	Count(ctx context.Context, tx Tx) (int64, error)

	// unused -> used, countdown starts immediately.
	MarkUsed(ctx context.Context, tx Tx, code, mac string, now, expiry time.Time) (bool, error)
	// unused -> pending, countdown deferred.
	MarkPending(ctx context.Context, tx Tx, code, mac string, now time.Time) (bool, error)
	// pending -> activated.
	MarkActivated(ctx context.Context, tx Tx, code string, now, expiry time.Time) (bool, error)
	// used|activated -> expired.
	MarkExpired(ctx context.Context, tx Tx, code string) (bool, error)

	ListExpired(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.AccessCode, error)
}
