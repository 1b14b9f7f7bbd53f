package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/KeplerC/fog-rtx/internal/config"
	internaldb "github.com/KeplerC/fog-rtx/internal/db"
	"github.com/KeplerC/fog-rtx/internal/db/repository"
	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/source"
	"github.com/KeplerC/fog-rtx/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T, sourceDir string) *config.Config {
	t.Helper()
	return &config.Config{
		DatasetPath:    filepath.Join(t.TempDir(), "datasets"),
		SourceURI:      sourceDir,
		DatasetVersion: testutil.Version,
		Split:          "train",
		SampleSize:     3,
		Shuffle:        true,
		Seed:           42,
		Parallelism:    1,
		MetadataOnly:   true,
	}
}

func TestOrganizer_Run(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRTXDataset(t, root, "kuka", []int{2, 2})
	testutil.WriteRTXDataset(t, root, "bridge", []int{5})

	cfg := testConfig(t, root)
	runs := repository.NewPrepareRunRepo(internaldb.OpenTestSQLite(t))
	o := NewOrganizer(Deps{Cfg: cfg, Runs: runs})

	results, err := o.Run(context.Background(), []string{"kuka", "bridge"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, 3, r.Summary.Episodes)
		assert.NotEmpty(t, r.RunID)
		assert.FileExists(t, filepath.Join(cfg.DatasetPath, r.Dataset+".duckdb"))
	}
	assert.Equal(t, "kuka", results[0].Dataset)

	recorded, err := runs.List(context.Background(), domain.RunFilter{})
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	for _, r := range recorded {
		assert.Equal(t, domain.RunStatusSuccess, r.Status)
		assert.Equal(t, 3, r.Episodes)
		assert.Equal(t, root, r.Source)
		assert.NotNil(t, r.FinishedAt)
	}
}

func TestOrganizer_FailuresDoNotStopOthers(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRTXDataset(t, root, "toto", []int{4})
	testutil.WriteRTXDataset(t, root, "viola", []int{1, 1, 1, 1})

	cfg := testConfig(t, root)
	cfg.Parallelism = 3
	runs := repository.NewPrepareRunRepo(internaldb.OpenTestSQLite(t))
	o := NewOrganizer(Deps{Cfg: cfg, Runs: runs})

	results, err := o.Run(context.Background(), []string{"toto", "missing_dataset", "viola"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_dataset")
	assert.True(t, domain.IsNotFound(err))

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 3, results[2].Summary.Episodes)

	failed, err := runs.List(context.Background(), domain.RunFilter{Status: domain.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "missing_dataset", failed[0].Dataset)
	assert.NotEmpty(t, failed[0].Error)
}

func TestOrganizer_WithoutRunCatalog(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRTXDataset(t, root, "kuka", []int{3})
	cfg := testConfig(t, root)
	cfg.MetadataOnly = false

	results, err := NewOrganizer(Deps{Cfg: cfg}).Run(context.Background(), []string{"kuka"})
	require.NoError(t, err)
	assert.Empty(t, results[0].RunID)
	assert.Equal(t, "float32[2]", results[0].Summary.Features["state"])
}

func TestOrganizer_DefaultDatasets(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	var opened string
	o := NewOrganizer(Deps{Cfg: cfg})
	o.openBucket = func(_ context.Context, uri string, _ config.StorageConfig) (source.Bucket, error) {
		opened = uri
		return source.NewLocal(uri), nil
	}

	results, err := o.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, cfg.SourceURI, opened)
	assert.Len(t, results, 51)
	for _, r := range results {
		assert.True(t, domain.IsNotFound(r.Err), r.Dataset)
	}
}

func TestOrganizer_Errors(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.SampleSize = 0
	_, err := NewOrganizer(Deps{Cfg: cfg}).Run(context.Background(), []string{"kuka"})
	assert.True(t, domain.IsValidation(err))

	cfg = testConfig(t, "s3://bucket/prefix")
	_, err = NewOrganizer(Deps{Cfg: cfg}).Run(context.Background(), []string{"kuka"})
	assert.True(t, domain.IsValidation(err))

	boom := errors.New("boom")
	o := NewOrganizer(Deps{Cfg: testConfig(t, t.TempDir())})
	o.openBucket = func(context.Context, string, config.StorageConfig) (source.Bucket, error) { return nil, boom }
	_, err = o.Run(context.Background(), []string{"kuka"})
	assert.ErrorIs(t, err, boom)
}

func TestOrganizer_Cancelled(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRTXDataset(t, root, "kuka", []int{3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewOrganizer(Deps{Cfg: testConfig(t, root)}).Run(ctx, []string{"kuka"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestScheduler(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRTXDataset(t, root, "kuka", []int{3})
	cfg := testConfig(t, root)
	s := NewScheduler(NewOrganizer(Deps{Cfg: cfg}), nil)

	assert.Error(t, s.Add(context.Background(), "not a schedule", nil))
	require.NoError(t, s.Add(context.Background(), "@every 1h", []string{"kuka"}))

	s.Start()
	s.trigger(context.Background(), []string{"kuka"})
	s.Stop()

	_, err := os.Stat(filepath.Join(cfg.DatasetPath, "kuka.duckdb"))
	assert.NoError(t, err)
	assert.False(t, s.running)
}
