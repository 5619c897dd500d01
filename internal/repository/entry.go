package repository

import (
	"context"
	"fmt"
	"iter"

	"github.com/aman-raj/fs-history/internal/models"
	"github.com/aman-raj/fs-history/internal/pkg/hserrors"
	"github.com/aman-raj/fs-history/pkg/database/postgresql"
)

type EntryRepository interface {
	All(ctx context.Context) iter.Seq2[models.Entry, error]
}

type entryRepository struct {
	db postgresql.Client
}

func NewEntryRepository(db postgresql.Client) EntryRepository {
	return &entryRepository{db: db}
}

// All yields every version joined with its owning path, ordered by
// (path id, version number). The query runs when iteration starts and the
// result set is released as soon as the consumer stops, so the sequence is a
// single lazy pass.
func (r *entryRepository) All(ctx context.Context) iter.Seq2[models.Entry, error] {
	const op = "repository.entryRepository.All"

	query := `
		SELECT p.id, p.parent, p.name, v.id, v.path_id, v.version_no, v.attrs
		FROM paths p
		JOIN versions v ON v.path_id = p.id
		ORDER BY p.id, v.version_no
	`

	return func(yield func(models.Entry, error) bool) {
		db := postgresql.GetDBClient(ctx, r.db)
		rows, err := db.Query(ctx, query)
		if err != nil {
			yield(models.Entry{}, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var entry models.Entry
			err := rows.Scan(
				&entry.Path.ID,
				&entry.Path.Parent,
				&entry.Path.Name,
				&entry.Version.ID,
				&entry.Version.PathID,
				&entry.Version.VersionNo,
				&entry.Version.Attrs,
			)
			if err != nil {
				yield(models.Entry{}, fmt.Errorf("%s: %w", op, err))
				return
			}
			if !yield(entry, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(models.Entry{}, fmt.Errorf("%s: %w: %w", op, hserrors.ErrStorageUnavailable, err))
		}
	}
}
