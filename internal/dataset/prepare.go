package dataset

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/rtx"
)

// PrepareOptions controls which episodes are read and what is kept.
type PrepareOptions struct {
	SampleSize int
	Shuffle    bool
	Seed       uint64
	// MetadataOnly records feature types without step values.
	MetadataOnly bool
}

// Summary describes one preparation run.
type Summary struct {
	Dataset     string
	Available   int64
	Episodes    int
	TotalSteps  int
	MeanSteps   float64
	StdDevSteps float64
	// Features maps each feature to its type, e.g. "action": "float32[7]".
	Features map[string]string
	Duration time.Duration
}

// PrepareRTXMetadata samples episodes from r and records their metadata, and
// their step values unless MetadataOnly is set.
func (d *Dataset) PrepareRTXMetadata(ctx context.Context, r *rtx.Reader, opts PrepareOptions) (Summary, error) {
	if opts.SampleSize <= 0 {
		return Summary{}, domain.ErrValidation("sample size must be positive, got %d", opts.SampleSize)
	}
	start := time.Now()
	sum := Summary{
		Dataset:   d.Name,
		Available: r.Split().NumEpisodes(),
		Features:  map[string]string{},
	}
	addrs := r.Sample(opts.SampleSize, opts.Shuffle, opts.Seed)
	d.logger.Info("preparing metadata", "episodes", len(addrs), "available", sum.Available, "shuffle", opts.Shuffle)

	var steps []float64
	err := r.Episodes(ctx, addrs, func(ep *rtx.Episode) error {
		if err := d.recordEpisode(ctx, ep, opts.MetadataOnly, sum.Features); err != nil {
			return fmt.Errorf("episode %d: %w", ep.Index, err)
		}
		steps = append(steps, float64(ep.Steps))
		sum.TotalSteps += ep.Steps
		return nil
	})
	sum.Episodes = len(steps)
	if len(steps) > 0 {
		sum.MeanSteps, sum.StdDevSteps = stat.MeanStdDev(steps, nil)
		if len(steps) < 2 {
			sum.StdDevSteps = 0
		}
	}
	sum.Duration = time.Since(start)
	if err != nil {
		return sum, fmt.Errorf("prepare %q: %w", d.Name, err)
	}
	d.logger.Info("metadata prepared", "episodes", sum.Episodes, "features", len(sum.Features),
		"mean_steps", sum.MeanSteps, "duration", sum.Duration)
	return sum, nil
}

func (d *Dataset) recordEpisode(ctx context.Context, ep *rtx.Episode, metadataOnly bool, types map[string]string) error {
	e, err := d.NewEpisode(ctx, EpisodeInfo{Source: ep.Source, RecordIndex: ep.Index, Steps: ep.Steps}, metadataOnly)
	if err != nil {
		return err
	}
	if err := d.fillEpisode(ctx, e, ep, metadataOnly, types); err != nil {
		if derr := e.Discard(context.WithoutCancel(ctx)); derr != nil {
			d.logger.Warn("could not discard episode tables", "episode", e.ID, "error", derr)
		}
		return err
	}
	return e.Close(ctx)
}

func (d *Dataset) fillEpisode(ctx context.Context, e *Episode, ep *rtx.Episode, metadataOnly bool, types map[string]string) error {
	for _, m := range ep.Metadata {
		if err := e.SetMetadata(ctx, m.Name, m.Value(0), m.Type); err != nil {
			return err
		}
	}
	for _, f := range ep.Features {
		types[f.Name] = f.Type.String()
		if metadataOnly {
			if err := e.Add(ctx, f.Name, nil, f.Type, 0); err != nil {
				return err
			}
			continue
		}
		for step := 0; step < ep.Steps; step++ {
			if err := e.Add(ctx, f.Name, f.Value(step), f.Type, int64(step)); err != nil {
				return err
			}
		}
	}
	return nil
}
