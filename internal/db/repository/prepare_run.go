package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/KeplerC/fog-rtx/internal/domain"
)

var _ domain.PrepareRunRepository = (*PrepareRunRepo)(nil)

const prepareRunColumns = `id, dataset, path, source, sample_size, shuffle, status, episodes,
	total_steps, mean_steps, stddev_steps, error, started_at, finished_at`

// PrepareRunRepo implements domain.PrepareRunRepository on the run catalog.
type PrepareRunRepo struct {
	db *sql.DB
}

// NewPrepareRunRepo creates a new PrepareRunRepo.
func NewPrepareRunRepo(db *sql.DB) *PrepareRunRepo {
	return &PrepareRunRepo{db: db}
}

// Create inserts a RUNNING run. ID and StartedAt are filled in when empty.
func (r *PrepareRunRepo) Create(ctx context.Context, run *domain.PrepareRun) (*domain.PrepareRun, error) {
	out := *run
	if out.ID == "" {
		out.ID = domain.NewID()
	}
	if out.StartedAt.IsZero() {
		out.StartedAt = time.Now()
	}
	out.StartedAt = out.StartedAt.UTC()
	out.Status = domain.RunStatusRunning

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prepare_runs (id, dataset, path, source, sample_size, shuffle, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.Dataset, out.Path, out.Source, out.SampleSize, boolToInt(out.Shuffle),
		out.Status, formatTime(out.StartedAt))
	if err != nil {
		return nil, mapDBError(err)
	}
	return &out, nil
}

// Finish records the outcome of a run: its status, counts and error.
func (r *PrepareRunRepo) Finish(ctx context.Context, run *domain.PrepareRun) error {
	if run.Status != domain.RunStatusSuccess && run.Status != domain.RunStatusFailed {
		return domain.ErrValidation("cannot finish run with status %q", run.Status)
	}
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE prepare_runs SET status = ?, episodes = ?, total_steps = ?, mean_steps = ?,
			stddev_steps = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		run.Status, run.Episodes, run.TotalSteps, run.MeanSteps, run.StdDevSteps, run.Error,
		nullTime(&finished), run.ID)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("prepare run %q not found", run.ID)
	}
	run.FinishedAt = &finished
	return nil
}

// Get returns a run by ID.
func (r *PrepareRunRepo) Get(ctx context.Context, id string) (*domain.PrepareRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+prepareRunColumns+` FROM prepare_runs WHERE id = ?`, id)
	run, err := scanPrepareRun(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return run, nil
}

// List returns runs matching filter, newest first.
func (r *PrepareRunRepo) List(ctx context.Context, filter domain.RunFilter) ([]domain.PrepareRun, error) {
	var (
		where []string
		args  []any
	)
	if filter.Dataset != "" {
		where = append(where, "dataset = ?")
		args = append(args, filter.Dataset)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	query := `SELECT ` + prepareRunColumns + ` FROM prepare_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list prepare runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.PrepareRun
	for rows.Next() {
		run, err := scanPrepareRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// LatestByDataset returns the most recent run of a dataset.
func (r *PrepareRunRepo) LatestByDataset(ctx context.Context, dataset string) (*domain.PrepareRun, error) {
	runs, err := r.List(ctx, domain.RunFilter{Dataset: dataset, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, domain.ErrNotFound("no prepare runs for dataset %q", dataset)
	}
	return &runs[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrepareRun(s rowScanner) (*domain.PrepareRun, error) {
	var (
		run      domain.PrepareRun
		shuffle  int64
		started  string
		finished sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Dataset, &run.Path, &run.Source, &run.SampleSize, &shuffle,
		&run.Status, &run.Episodes, &run.TotalSteps, &run.MeanSteps, &run.StdDevSteps, &run.Error,
		&started, &finished); err != nil {
		return nil, err
	}
	run.Shuffle = shuffle != 0

	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, fmt.Errorf("parse started_at of run %s: %w", run.ID, err)
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at of run %s: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}
