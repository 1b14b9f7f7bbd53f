package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "github.com/KeplerC/fog-rtx/internal/db"
	"github.com/KeplerC/fog-rtx/internal/domain"
)

func setupPrepareRunRepo(t *testing.T) *PrepareRunRepo {
	t.Helper()
	return NewPrepareRunRepo(internaldb.OpenTestSQLite(t))
}

func TestPrepareRunRepo_CreateAndGet(t *testing.T) {
	repo := setupPrepareRunRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.PrepareRun{
		Dataset:    "kuka",
		Path:       "/data/rtx",
		Source:     "gs://gresearch/robotics",
		SampleSize: 10,
		Shuffle:    true,
		Status:     domain.RunStatusSuccess,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.RunStatusRunning, created.Status)
	assert.False(t, created.StartedAt.IsZero())

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "kuka", got.Dataset)
	assert.Equal(t, "gs://gresearch/robotics", got.Source)
	assert.True(t, got.Shuffle)
	assert.Equal(t, 10, got.SampleSize)
	assert.Nil(t, got.FinishedAt)
	assert.Zero(t, got.Duration())
	assert.WithinDuration(t, created.StartedAt, got.StartedAt, time.Microsecond)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestPrepareRunRepo_DuplicateID(t *testing.T) {
	repo := setupPrepareRunRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &domain.PrepareRun{ID: "r1", Dataset: "kuka", Path: "/d", SampleSize: 1})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.PrepareRun{ID: "r1", Dataset: "kuka", Path: "/d", SampleSize: 1})
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestPrepareRunRepo_Finish(t *testing.T) {
	repo := setupPrepareRunRepo(t)
	ctx := context.Background()

	run, err := repo.Create(ctx, &domain.PrepareRun{Dataset: "bridge", Path: "/d", SampleSize: 10})
	require.NoError(t, err)

	run.Status = domain.RunStatusSuccess
	run.Episodes = 10
	run.TotalSteps = 312
	run.MeanSteps = 31.2
	run.StdDevSteps = 4.5
	require.NoError(t, repo.Finish(ctx, run))
	require.NotNil(t, run.FinishedAt)

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, got.Status)
	assert.Equal(t, 10, got.Episodes)
	assert.Equal(t, 312, got.TotalSteps)
	assert.InDelta(t, 31.2, got.MeanSteps, 1e-9)
	assert.InDelta(t, 4.5, got.StdDevSteps, 1e-9)
	require.NotNil(t, got.FinishedAt)
	assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))
}

func TestPrepareRunRepo_FinishErrors(t *testing.T) {
	repo := setupPrepareRunRepo(t)
	ctx := context.Background()

	err := repo.Finish(ctx, &domain.PrepareRun{ID: "missing", Status: domain.RunStatusFailed})
	assert.True(t, domain.IsNotFound(err))

	err = repo.Finish(ctx, &domain.PrepareRun{ID: "missing", Status: domain.RunStatusRunning})
	assert.True(t, domain.IsValidation(err))
}

func TestPrepareRunRepo_ListAndLatest(t *testing.T) {
	repo := setupPrepareRunRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, ds := range []string{"kuka", "bridge", "kuka"} {
		run, err := repo.Create(ctx, &domain.PrepareRun{
			Dataset: ds, Path: "/d", SampleSize: 10, StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		run.Status = domain.RunStatusSuccess
		if i == 1 {
			run.Status = domain.RunStatusFailed
			run.Error = "dataset_info.json not found"
		}
		require.NoError(t, repo.Finish(ctx, run))
	}

	all, err := repo.List(ctx, domain.RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "kuka", all[0].Dataset)
	assert.True(t, base.Add(2*time.Minute).Equal(all[0].StartedAt))

	kuka, err := repo.List(ctx, domain.RunFilter{Dataset: "kuka"})
	require.NoError(t, err)
	assert.Len(t, kuka, 2)

	failed, err := repo.List(ctx, domain.RunFilter{Status: domain.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "dataset_info.json not found", failed[0].Error)

	limited, err := repo.List(ctx, domain.RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	latest, err := repo.LatestByDataset(ctx, "bridge")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, latest.Status)

	_, err = repo.LatestByDataset(ctx, "toto")
	assert.True(t, domain.IsNotFound(err))
}
