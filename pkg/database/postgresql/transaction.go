package postgresql

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// TxManager runs functions inside a database transaction. The transaction is
// stashed in the context so that repositories called from fn pick it up via
// GetDBClient and join the same unit of work.
type TxManager struct {
	db Client
}

func NewTxManager(db Client) *TxManager {
	return &TxManager{db: db}
}

// Do executes fn inside a transaction. Commit happens only when fn returns
// nil; any error (or panic) rolls the whole unit of work back.
func (m *TxManager) Do(ctx context.Context, fn func(context.Context) error) (err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(txCtx)
	return err
}

// GetDBClient returns the transaction from the context if present, otherwise
// the default client.
func GetDBClient(ctx context.Context, defaultClient Client) Client {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return defaultClient
}
