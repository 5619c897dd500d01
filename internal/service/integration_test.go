package service_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/aman-raj/fs-history/internal/models"
	"github.com/aman-raj/fs-history/internal/repository"
	"github.com/aman-raj/fs-history/internal/schema"
	"github.com/aman-raj/fs-history/internal/service"
	"github.com/aman-raj/fs-history/pkg/database/postgresql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run against a live PostgreSQL instance. Point
// FSHISTORY_TEST_DSN at a throwaway database; the schema is dropped and
// recreated around every test.
const dsnEnv = "FSHISTORY_TEST_DSN"

func setupService(t *testing.T) service.HistoryService {
	t.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set, skipping integration test", dsnEnv)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	mgr := schema.NewManager(pool)
	require.NoError(t, mgr.Drop(ctx))
	require.NoError(t, mgr.Setup(ctx))

	t.Cleanup(func() {
		_ = mgr.Drop(context.Background())
		pool.Close()
	})

	svc := service.NewHistoryService(
		postgresql.NewTxManager(pool),
		repository.NewPathRepository(pool),
		repository.NewVersionRepository(pool),
		repository.NewEntryRepository(pool),
	)

	return svc
}

func TestIntegration_SequentialUpsertsAreGapless(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	const n = 10
	for i := 1; i <= n; i++ {
		version, err := svc.UpsertVersion(ctx, "/home/aman", "notes.md", models.Attrs{"rev": i})
		require.NoError(t, err)
		assert.Equal(t, i, version.VersionNo)
	}

	versions, err := svc.SelectVersions(ctx, repository.VersionFilter{})
	require.NoError(t, err)
	require.Len(t, versions, n)
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNo)
	}
}

func TestIntegration_ConcurrentUpsertsOnOnePath(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	const k = 5

	var wg sync.WaitGroup
	errs := make([]error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.UpsertVersion(ctx, "/var/db", "state.json", models.Attrs{"writer": i})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	versions, err := svc.SelectVersions(ctx, repository.VersionFilter{})
	require.NoError(t, err)
	require.Len(t, versions, k)

	seen := make(map[int]bool, k)
	for _, v := range versions {
		assert.False(t, seen[v.VersionNo], "duplicate version_no %d", v.VersionNo)
		seen[v.VersionNo] = true
	}
	for no := 1; no <= k; no++ {
		assert.True(t, seen[no], "missing version_no %d", no)
	}
}

func TestIntegration_ConcurrentUpsertsCreateOnePathRow(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	const k = 4

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.UpsertVersion(ctx, "/fresh", "race.txt", models.Attrs{"writer": i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	parent := "/fresh"
	name := "race.txt"
	paths, err := svc.SelectPaths(ctx, repository.PathFilter{Parent: &parent, Name: &name})
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestIntegration_ConcurrentUpsertsOnDistinctPathsNeverRetryOut(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	const k = 8

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("file-%d.txt", i)
			v, err := svc.UpsertVersion(ctx, "/spread", name, models.Attrs{"i": i})
			assert.NoError(t, err)
			if err == nil {
				assert.Equal(t, 1, v.VersionNo)
			}
		}(i)
	}
	wg.Wait()

	parent := "/spread"
	paths, err := svc.SelectPaths(ctx, repository.PathFilter{Parent: &parent})
	require.NoError(t, err)
	assert.Len(t, paths, k)
}

func TestIntegration_SelectFilters(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	a, err := svc.UpsertVersion(ctx, "/etc", "hosts", models.Attrs{"v": 1})
	require.NoError(t, err)
	_, err = svc.UpsertVersion(ctx, "/etc", "hosts", models.Attrs{"v": 2})
	require.NoError(t, err)
	b, err := svc.UpsertVersion(ctx, "/etc", "passwd", models.Attrs{"v": 1})
	require.NoError(t, err)

	byPath, err := svc.SelectVersions(ctx, repository.VersionFilter{PathID: &a.PathID})
	require.NoError(t, err)
	require.Len(t, byPath, 2)
	for _, v := range byPath {
		assert.Equal(t, a.PathID, v.PathID)
	}
	assert.Equal(t, 1, byPath[0].VersionNo)
	assert.Equal(t, 2, byPath[1].VersionNo)

	no := 1
	firstOnly, err := svc.SelectVersions(ctx, repository.VersionFilter{PathID: &b.PathID, VersionNo: &no})
	require.NoError(t, err)
	require.Len(t, firstOnly, 1)
	assert.Equal(t, b.PathID, firstOnly[0].PathID)

	name := "passwd"
	paths, err := svc.SelectPaths(ctx, repository.PathFilter{Name: &name})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "/etc", paths[0].Parent)
}

func TestIntegration_SelectAllJoinsPathsAndVersions(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.UpsertVersion(ctx, "/a", "one", models.Attrs{"v": 1})
	require.NoError(t, err)
	_, err = svc.UpsertVersion(ctx, "/a", "one", models.Attrs{"v": 2})
	require.NoError(t, err)
	_, err = svc.UpsertVersion(ctx, "/b", "two", models.Attrs{"v": 1})
	require.NoError(t, err)

	var entries []models.Entry
	for entry, err := range svc.SelectAll(ctx) {
		require.NoError(t, err)
		entries = append(entries, entry)
	}

	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, e.Path.ID, e.Version.PathID)
	}
	// Ordered by path id, then version number.
	assert.Equal(t, 1, entries[0].Version.VersionNo)
	assert.Equal(t, 2, entries[1].Version.VersionNo)
	assert.Equal(t, "two", entries[2].Path.Name)
}

func TestIntegration_AttrsRoundTrip(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	attrs := models.Attrs{
		"size":   float64(2048),
		"mtime":  "2026-08-30T12:00:00Z",
		"hidden": false,
		"tags":   []any{"work", "draft"},
		"owner":  map[string]any{"name": "aman", "uid": float64(1000)},
	}

	written, err := svc.UpsertVersion(ctx, "/home/aman", "report.pdf", attrs)
	require.NoError(t, err)

	read, err := svc.SelectVersions(ctx, repository.VersionFilter{PathID: &written.PathID})
	require.NoError(t, err)
	require.Len(t, read, 1)
	assert.Equal(t, attrs, read[0].Attrs)
}

func TestIntegration_InsertPathAndExplicitVersion(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	path, err := svc.InsertPath(ctx, "/import", "bulk.dat")
	require.NoError(t, err)
	require.NotZero(t, path.ID)

	// Duplicate explicit create is a caller error.
	_, err = svc.InsertPath(ctx, "/import", "bulk.dat")
	require.Error(t, err)

	v, err := svc.InsertVersion(ctx, path.ID, 1, models.Attrs{"imported": true})
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNo)

	// Upsert continues the numbering the explicit insert started.
	next, err := svc.UpsertVersion(ctx, "/import", "bulk.dat", models.Attrs{"imported": false})
	require.NoError(t, err)
	assert.Equal(t, 2, next.VersionNo)
}

func TestIntegration_Scenario(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		v, err := svc.UpsertVersion(ctx, "/usr/aman", "test.txt", models.Attrs{"v": i})
		require.NoError(t, err)
		assert.Equal(t, i, v.VersionNo)
	}

	parent := "/usr/aman"
	name := "test.txt"
	paths, err := svc.SelectPaths(ctx, repository.PathFilter{Parent: &parent, Name: &name})
	require.NoError(t, err)
	require.Len(t, paths, 1)

	versions, err := svc.SelectVersions(ctx, repository.VersionFilter{PathID: &paths[0].ID})
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNo)
		assert.Equal(t, models.Attrs{"v": float64(i + 1)}, v.Attrs)
	}
}
