package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aman-raj/fs-history/internal/models"
	"github.com/aman-raj/fs-history/internal/pkg/hserrors"
	"github.com/aman-raj/fs-history/pkg/database/postgresql"
	"github.com/jackc/pgx/v5"
)

// PathFilter narrows List results. Nil fields are unrestricted; set fields
// match exactly.
type PathFilter struct {
	Parent *string
	Name   *string
}

type PathRepository interface {
	GetOrCreate(ctx context.Context, parent string, name string) (*models.Path, error)
	Create(ctx context.Context, parent string, name string) (*models.Path, error)
	List(ctx context.Context, filter PathFilter) ([]models.Path, error)
}

type pathRepository struct {
	db postgresql.Client
}

func NewPathRepository(db postgresql.Client) PathRepository {
	return &pathRepository{db: db}
}

func (r *pathRepository) get(ctx context.Context, parent string, name string) (*models.Path, error) {
	query := `
		SELECT id, parent, name
		FROM paths
		WHERE parent = $1 AND name = $2
	`

	var path models.Path
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, parent, name).Scan(
		&path.ID,
		&path.Parent,
		&path.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", hserrors.ErrStorageUnavailable, err)
	}

	return &path, nil
}

// GetOrCreate resolves (parent, name) to its path row, creating it on first
// use. Concurrent callers for the same brand-new pair all end up with the
// same row: the insert tolerates the unique constraint and a loser re-reads
// the winner.
func (r *pathRepository) GetOrCreate(ctx context.Context, parent string, name string) (*models.Path, error) {
	const op = "repository.pathRepository.GetOrCreate"

	path, err := r.get(ctx, parent, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if path != nil {
		return path, nil
	}

	query := `
		INSERT INTO paths (parent, name)
		VALUES ($1, $2)
		ON CONFLICT (parent, name) DO NOTHING
		RETURNING id
	`

	var id int64
	db := postgresql.GetDBClient(ctx, r.db)
	err = db.QueryRow(ctx, query, parent, name).Scan(&id)
	if err == nil {
		return &models.Path{ID: id, Parent: parent, Name: name}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}

	// Lost the insert race: the winner's row is committed, fetch it.
	path, err = r.get(ctx, parent, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if path == nil {
		return nil, fmt.Errorf("%s: %w", op, hserrors.ErrNotFound)
	}

	return path, nil
}

// Create inserts a path row unconditionally. A duplicate (parent, name) is a
// caller error and surfaces as the backend's unique violation.
func (r *pathRepository) Create(ctx context.Context, parent string, name string) (*models.Path, error) {
	const op = "repository.pathRepository.Create"

	query := `
		INSERT INTO paths (parent, name)
		VALUES ($1, $2)
		RETURNING id
	`

	var id int64
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, parent, name).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}

	return &models.Path{ID: id, Parent: parent, Name: name}, nil
}

func (r *pathRepository) List(ctx context.Context, filter PathFilter) ([]models.Path, error) {
	const op = "repository.pathRepository.List"

	query := `SELECT id, parent, name FROM paths`

	var (
		conds []string
		args  []any
	)
	if filter.Parent != nil {
		args = append(args, *filter.Parent)
		conds = append(conds, fmt.Sprintf("parent = $%d", len(args)))
	}
	if filter.Name != nil {
		args = append(args, *filter.Name)
		conds = append(conds, fmt.Sprintf("name = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var paths []models.Path
	for rows.Next() {
		var path models.Path
		if err := rows.Scan(&path.ID, &path.Parent, &path.Name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		paths = append(paths, path)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}

	return paths, nil
}
