package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Repositories accept nil for the
// non-transactional path; the concrete type is infra-defined (pgx.Tx for Postgres).
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction, committing when fn
// returns nil and rolling back otherwise.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		t, err := transactions.FindByID(ctx, tx, id) // row is locked FOR UPDATE
//		...
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
