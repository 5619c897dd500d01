package schema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/aman-raj/fs-history/pkg/database/postgresql"
	"github.com/aman-raj/fs-history/pkg/logging"
)

//go:embed schema.sql
var schemaSQL string

// Manager creates and drops the two relations. Setup is idempotent; Drop is
// destructive and must not run concurrently with active writers.
type Manager struct {
	db postgresql.Client
}

func NewManager(db postgresql.Client) *Manager {
	return &Manager{db: db}
}

func (m *Manager) Setup(ctx context.Context) error {
	const op = "schema.Manager.Setup"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	db := postgresql.GetDBClient(ctx, m.db)
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("Schema created")
	return nil
}

func (m *Manager) Drop(ctx context.Context) error {
	const op = "schema.Manager.Drop"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	query := `DROP TABLE IF EXISTS versions, paths`

	db := postgresql.GetDBClient(ctx, m.db)
	if _, err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("Schema dropped")
	return nil
}
