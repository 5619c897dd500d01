package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/aman-raj/fs-history/internal/models"
	"github.com/aman-raj/fs-history/internal/pkg/hserrors"
	"github.com/aman-raj/fs-history/internal/repository"
	"github.com/aman-raj/fs-history/pkg/logging"
	"github.com/aman-raj/fs-history/pkg/logging/slogext"
)

// DefaultUpsertRetries bounds the number of transaction attempts a single
// UpsertVersion call makes before giving up with ErrVersioningFailed.
const DefaultUpsertRetries = 5

// TxManager runs a function inside one atomic unit of work. Satisfied by
// postgresql.TxManager.
type TxManager interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

type HistoryService interface {
	// UpsertVersion appends the next version of the path's attribute history
	// without a caller-supplied version number. Safe under concurrent calls
	// for the same path.
	UpsertVersion(ctx context.Context, parent string, name string, attrs models.Attrs) (*models.Version, error)

	// InsertPath creates a path row explicitly, ahead of any version write.
	InsertPath(ctx context.Context, parent string, name string) (*models.Path, error)

	// InsertVersion writes a version row with a caller-chosen number. Meant
	// for bulk imports; it has none of UpsertVersion's race protection.
	InsertVersion(ctx context.Context, pathID int64, versionNo int, attrs models.Attrs) (*models.Version, error)

	SelectAll(ctx context.Context) iter.Seq2[models.Entry, error]
	SelectPaths(ctx context.Context, filter repository.PathFilter) ([]models.Path, error)
	SelectVersions(ctx context.Context, filter repository.VersionFilter) ([]models.Version, error)
}

type historyService struct {
	txm         TxManager
	pathRepo    repository.PathRepository
	versionRepo repository.VersionRepository
	entryRepo   repository.EntryRepository
	retries     int
}

type Option func(*historyService)

// WithUpsertRetries overrides the upsert retry bound. Values below 1 are
// ignored.
func WithUpsertRetries(n int) Option {
	return func(s *historyService) {
		if n > 0 {
			s.retries = n
		}
	}
}

func NewHistoryService(
	txm TxManager,
	pathRepo repository.PathRepository,
	versionRepo repository.VersionRepository,
	entryRepo repository.EntryRepository,
	opts ...Option,
) HistoryService {
	s := &historyService{
		txm:         txm,
		pathRepo:    pathRepo,
		versionRepo: versionRepo,
		entryRepo:   entryRepo,
		retries:     DefaultUpsertRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertVersion resolves the path identity, reads the current max version
// number and inserts max+1, all inside a single transaction. When a
// concurrent writer takes the slot first, the unique constraint on
// (path_id, version_no) turns the insert into ErrVersionConflict, the
// transaction rolls back, and the whole attempt reruns against the new max.
// Both the read and the insert must share the transaction; the constraint,
// not the read, is what makes the numbering safe.
func (s *historyService) UpsertVersion(ctx context.Context, parent string, name string, attrs models.Attrs) (*models.Version, error) {
	const op = "service.historyService.UpsertVersion"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Upserting version", slog.String("parent", parent), slog.String("name", name))

	// Nil attrs would reach the backend as SQL NULL and trip the NOT NULL
	// constraint; an absent payload means an empty one.
	if attrs == nil {
		attrs = models.Attrs{}
	}

	for attempt := 1; attempt <= s.retries; attempt++ {
		var version *models.Version

		err := s.txm.Do(ctx, func(ctx context.Context) error {
			path, err := s.pathRepo.GetOrCreate(ctx, parent, name)
			if err != nil {
				return err
			}

			maxNo, err := s.versionRepo.MaxVersionNo(ctx, path.ID)
			if err != nil {
				return err
			}

			version, err = s.versionRepo.Insert(ctx, path.ID, maxNo+1, attrs)
			return err
		})

		if err == nil {
			logger.Debug("Version upserted",
				slog.Int64("path_id", version.PathID),
				slog.Int("version_no", version.VersionNo),
				slog.Int("attempt", attempt),
			)
			return version, nil
		}

		if errors.Is(err, hserrors.ErrVersionConflict) {
			logger.Debug("Version slot taken, retrying",
				slog.String("parent", parent),
				slog.String("name", name),
				slog.Int("attempt", attempt),
			)
			continue
		}

		logger.Error("Failed to upsert version", slogext.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Error("Upsert retries exhausted",
		slog.String("parent", parent),
		slog.String("name", name),
		slog.Int("retries", s.retries),
	)
	return nil, fmt.Errorf("%s: %w", op, hserrors.ErrVersioningFailed)
}

func (s *historyService) InsertPath(ctx context.Context, parent string, name string) (*models.Path, error) {
	const op = "service.historyService.InsertPath"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	path, err := s.pathRepo.Create(ctx, parent, name)
	if err != nil {
		logger.Error("Failed to insert path", slogext.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Path inserted", slog.Int64("id", path.ID))
	return path, nil
}

func (s *historyService) InsertVersion(ctx context.Context, pathID int64, versionNo int, attrs models.Attrs) (*models.Version, error) {
	const op = "service.historyService.InsertVersion"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if attrs == nil {
		attrs = models.Attrs{}
	}

	version, err := s.versionRepo.Insert(ctx, pathID, versionNo, attrs)
	if err != nil {
		logger.Error("Failed to insert version", slogext.Err(err), slog.Int64("path_id", pathID))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Debug("Version inserted",
		slog.Int64("path_id", version.PathID),
		slog.Int("version_no", version.VersionNo),
	)
	return version, nil
}

func (s *historyService) SelectAll(ctx context.Context) iter.Seq2[models.Entry, error] {
	return s.entryRepo.All(ctx)
}

func (s *historyService) SelectPaths(ctx context.Context, filter repository.PathFilter) ([]models.Path, error) {
	const op = "service.historyService.SelectPaths"

	paths, err := s.pathRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return paths, nil
}

func (s *historyService) SelectVersions(ctx context.Context, filter repository.VersionFilter) ([]models.Version, error) {
	const op = "service.historyService.SelectVersions"

	versions, err := s.versionRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return versions, nil
}
