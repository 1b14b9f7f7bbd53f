// Package app wires configuration, the RT-X source, dataset stores and the
// run catalog into the organizer that prepares dataset metadata.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KeplerC/fog-rtx/internal/config"
	"github.com/KeplerC/fog-rtx/internal/dataset"
	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/rtx"
	"github.com/KeplerC/fog-rtx/internal/source"
)

// Deps holds what the organizer cannot create itself.
type Deps struct {
	Cfg *config.Config
	// Runs records each preparation; nil disables run tracking.
	Runs   domain.PrepareRunRepository
	Logger *slog.Logger
}

// Result is the outcome of preparing one dataset.
type Result struct {
	Dataset string
	RunID   string
	Summary dataset.Summary
	Err     error
}

// Organizer prepares the metadata of a list of RT-X datasets.
type Organizer struct {
	cfg    *config.Config
	runs   domain.PrepareRunRepository
	logger *slog.Logger

	// openBucket is swapped in tests.
	openBucket func(ctx context.Context, uri string, cfg config.StorageConfig) (source.Bucket, error)
}

// NewOrganizer creates an Organizer from deps.
func NewOrganizer(deps Deps) *Organizer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Organizer{
		cfg:        deps.Cfg,
		runs:       deps.Runs,
		logger:     logger.With("component", "organizer"),
		openBucket: source.Open,
	}
}

// Run prepares each named dataset, rtx.DefaultDatasets when names is empty.
// A failing dataset does not stop the others; the returned error joins
// every failure. Results are in the order of names.
func (o *Organizer) Run(ctx context.Context, names []string) ([]Result, error) {
	if len(names) == 0 {
		names = rtx.DefaultDatasets
	}
	if o.cfg.SampleSize <= 0 {
		return nil, domain.ErrValidation("sample size must be positive, got %d", o.cfg.SampleSize)
	}

	bucket, err := o.openBucket(ctx, o.cfg.SourceURI, o.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer bucket.Close() //nolint:errcheck
	bucket = source.RateLimited(bucket, o.cfg.RequestsPerSec)

	parallel := o.cfg.Parallelism
	if parallel < 1 {
		parallel = 1
	}
	o.logger.Info("preparing datasets", "count", len(names), "source", bucket.String(),
		"path", o.cfg.DatasetPath, "parallel", parallel)

	results := make([]Result, len(names))
	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Dataset: name, Err: err}
				return nil
			}
			res := o.prepare(ctx, bucket, name)
			results[i] = res
			if res.Err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if len(errs) > 0 {
		o.logger.Warn("some datasets failed", "failed", len(errs), "total", len(names))
	}
	return results, errors.Join(errs...)
}

func (o *Organizer) prepare(ctx context.Context, bucket source.Bucket, name string) Result {
	res := Result{Dataset: name}
	logger := o.logger.With("dataset", name)

	var run *domain.PrepareRun
	if o.runs != nil {
		created, err := o.runs.Create(ctx, &domain.PrepareRun{
			Dataset:    name,
			Path:       o.cfg.DatasetPath,
			Source:     bucket.String(),
			SampleSize: o.cfg.SampleSize,
			Shuffle:    o.cfg.Shuffle,
		})
		if err != nil {
			res.Err = fmt.Errorf("record run: %w", err)
			return res
		}
		run = created
		res.RunID = run.ID
	}

	res.Summary, res.Err = o.prepareDataset(ctx, bucket, name)
	if res.Err != nil {
		logger.Error("prepare failed", "error", res.Err)
	} else {
		logger.Info("prepared", "episodes", res.Summary.Episodes, "features", len(res.Summary.Features),
			"duration", res.Summary.Duration.Round(time.Millisecond))
	}

	if run != nil {
		run.Status = domain.RunStatusSuccess
		run.Episodes = res.Summary.Episodes
		run.TotalSteps = res.Summary.TotalSteps
		run.MeanSteps = res.Summary.MeanSteps
		run.StdDevSteps = res.Summary.StdDevSteps
		if res.Err != nil {
			run.Status = domain.RunStatusFailed
			run.Error = res.Err.Error()
		}
		// The run outcome is recorded even when ctx was cancelled.
		if err := o.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn("could not record run outcome", "run", run.ID, "error", err)
		}
	}
	return res
}

func (o *Organizer) prepareDataset(ctx context.Context, bucket source.Bucket, name string) (dataset.Summary, error) {
	reader, err := rtx.NewReader(ctx, bucket, name, o.cfg.DatasetVersion, o.cfg.Split, o.logger)
	if err != nil {
		return dataset.Summary{Dataset: name}, err
	}
	ds, err := dataset.Open(ctx, name, o.cfg.DatasetPath, o.logger)
	if err != nil {
		return dataset.Summary{Dataset: name}, err
	}
	defer ds.Close() //nolint:errcheck

	return ds.PrepareRTXMetadata(ctx, reader, dataset.PrepareOptions{
		SampleSize:   o.cfg.SampleSize,
		Shuffle:      o.cfg.Shuffle,
		Seed:         o.cfg.Seed,
		MetadataOnly: o.cfg.MetadataOnly,
	})
}
