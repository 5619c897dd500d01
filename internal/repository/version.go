package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/aman-raj/fs-history/internal/models"
	"github.com/aman-raj/fs-history/internal/pkg/hserrors"
	"github.com/aman-raj/fs-history/pkg/database/postgresql"
)

// VersionFilter narrows List results. Nil fields are unrestricted.
type VersionFilter struct {
	PathID    *int64
	VersionNo *int
}

type VersionRepository interface {
	MaxVersionNo(ctx context.Context, pathID int64) (int, error)
	Insert(ctx context.Context, pathID int64, versionNo int, attrs models.Attrs) (*models.Version, error)
	List(ctx context.Context, filter VersionFilter) ([]models.Version, error)
}

type versionRepository struct {
	db postgresql.Client
}

func NewVersionRepository(db postgresql.Client) VersionRepository {
	return &versionRepository{db: db}
}

// MaxVersionNo returns the highest stored version number for a path, or 0
// when the path has no versions yet. Call it inside the same transaction as
// the insert that depends on it, or the read is stale by construction.
func (r *versionRepository) MaxVersionNo(ctx context.Context, pathID int64) (int, error) {
	const op = "repository.versionRepository.MaxVersionNo"

	query := `
		SELECT COALESCE(MAX(version_no), 0)
		FROM versions
		WHERE path_id = $1
	`

	var maxNo int
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, pathID).Scan(&maxNo)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}

	return maxNo, nil
}

// Insert writes one immutable version row. A taken (path_id, version_no)
// slot surfaces as ErrVersionConflict, which is what the upsert retry loop
// keys its retry on.
func (r *versionRepository) Insert(ctx context.Context, pathID int64, versionNo int, attrs models.Attrs) (*models.Version, error) {
	const op = "repository.versionRepository.Insert"

	query := `
		INSERT INTO versions (path_id, version_no, attrs)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, pathID, versionNo, attrs).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, hserrors.ErrVersionConflict)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}

	return &models.Version{
		ID:        id,
		PathID:    pathID,
		VersionNo: versionNo,
		Attrs:     attrs,
	}, nil
}

func (r *versionRepository) List(ctx context.Context, filter VersionFilter) ([]models.Version, error) {
	const op = "repository.versionRepository.List"

	query := `SELECT id, path_id, version_no, attrs FROM versions`

	var (
		conds []string
		args  []any
	)
	if filter.PathID != nil {
		args = append(args, *filter.PathID)
		conds = append(conds, fmt.Sprintf("path_id = $%d", len(args)))
	}
	if filter.VersionNo != nil {
		args = append(args, *filter.VersionNo)
		conds = append(conds, fmt.Sprintf("version_no = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY path_id, version_no"

	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var versions []models.Version
	for rows.Next() {
		var version models.Version
		err := rows.Scan(&version.ID, &version.PathID, &version.VersionNo, &version.Attrs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		versions = append(versions, version)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err)
	}

	return versions, nil
}
