package postgresql

import (
	"context"
	"fmt"

	"github.com/aman-raj/fs-history/internal/config"
	"github.com/aman-raj/fs-history/internal/pkg/hserrors"
	"github.com/aman-raj/fs-history/pkg/logging"
	"github.com/aman-raj/fs-history/pkg/logging/slogext"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client is the subset of pgx the repositories need. Both *pgxpool.Pool and
// pgx.Tx satisfy it, which is what lets a repository run unchanged inside or
// outside a transaction.
type Client interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// New creates a connection pool and verifies it with a ping. The caller owns
// the returned pool and must Close it when done.
func New(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	const op = "postgresql.New"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		logger.Error("Failed to create connection pool", slogext.Err(err))
		return nil, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}

	if err = pool.Ping(ctx); err != nil {
		logger.Error("Failed to connect to database", slogext.Err(err))
		pool.Close()
		return nil, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}

	logger.Info("Connected to database")
	return pool, nil
}
