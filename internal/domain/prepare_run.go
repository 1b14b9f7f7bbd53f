package domain

import (
	"context"
	"time"
)

// Prepare run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// PrepareRun is one metadata preparation of one dataset.
type PrepareRun struct {
	ID          string     `json:"id"`
	Dataset     string     `json:"dataset"`
	Path        string     `json:"path"`
	Source      string     `json:"source"`
	SampleSize  int        `json:"sample_size"`
	Shuffle     bool       `json:"shuffle"`
	Status      string     `json:"status"`
	Episodes    int        `json:"episodes"`
	TotalSteps  int        `json:"total_steps"`
	MeanSteps   float64    `json:"mean_steps"`
	StdDevSteps float64    `json:"stddev_steps"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Duration is the run time, or zero while the run is in progress.
func (r *PrepareRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFilter narrows a run listing. Zero values match everything.
type RunFilter struct {
	Dataset string
	Status  string
	Limit   int
}

// PrepareRunRepository persists prepare runs.
type PrepareRunRepository interface {
	Create(ctx context.Context, run *PrepareRun) (*PrepareRun, error)
	Finish(ctx context.Context, run *PrepareRun) error
	Get(ctx context.Context, id string) (*PrepareRun, error)
	List(ctx context.Context, filter RunFilter) ([]PrepareRun, error)
	LatestByDataset(ctx context.Context, dataset string) (*PrepareRun, error)
}
