package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. The concrete type is infra-defined
// (pgx.Tx for Postgres); repositories accept nil for the non-transactional
// path.
type Tx interface{}

// TransactionManager runs fn inside a database transaction, passing the
// underlying handle through tx so repository calls in the closure share it.
// It exists so use-case code never sees driver types directly.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
