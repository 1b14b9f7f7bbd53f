// Package dataset organizes robot episodes in a frame.Store: one metadata
// row per episode in a table named after the dataset, and one table of
// per-step feature values per episode.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/frame"
)

// Metadata table columns present in every dataset.
const (
	ColEpisodeID   = "episode_id"
	ColSource      = "source"
	ColRecordIndex = "record_index"
	ColNumSteps    = "num_steps"
)

// typeSuffix names the metadata column that records a feature's type.
const typeSuffix = "_type"

var baseColumns = []frame.Column{
	{Name: ColEpisodeID, Type: "BIGINT"},
	{Name: ColSource, Type: "VARCHAR"},
	{Name: ColRecordIndex, Type: "BIGINT"},
	{Name: ColNumSteps, Type: "BIGINT"},
}

// Dataset is a named collection of episodes backed by one store.
type Dataset struct {
	Name string
	// Path is the directory holding the store file, or "" for in-memory.
	Path string

	store  *frame.Store
	logger *slog.Logger

	mu          sync.Mutex
	nextEpisode int
}

// Open opens or creates the dataset store at <path>/<name>.duckdb. An empty
// path keeps the dataset in memory.
func Open(ctx context.Context, name, path string, logger *slog.Logger) (*Dataset, error) {
	if name == "" {
		return nil, domain.ErrValidation("dataset name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dbPath := ""
	if path != "" {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create dataset directory: %w", err)
		}
		dbPath = filepath.Join(path, name+".duckdb")
	}
	store, err := frame.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open dataset %q: %w", name, err)
	}

	d := &Dataset{
		Name:   name,
		Path:   path,
		store:  store,
		logger: logger.With("dataset", name),
	}
	if err := d.init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}

func (d *Dataset) init(ctx context.Context) error {
	if !d.store.HasTable(d.Name) {
		if err := d.store.CreateTable(ctx, d.Name); err != nil {
			return err
		}
	}
	for _, c := range baseColumns {
		if d.store.HasColumn(d.Name, c.Name) {
			continue
		}
		if err := d.store.AddColumnType(ctx, d.Name, c.Name, c.Type); err != nil {
			return fmt.Errorf("init metadata table: %w", err)
		}
	}
	n, err := d.store.RowCount(d.Name)
	if err != nil {
		return err
	}
	d.nextEpisode = n
	return nil
}

// Close releases the store.
func (d *Dataset) Close() error { return d.store.Close() }

// Store exposes the underlying table store.
func (d *Dataset) Store() *frame.Store { return d.store }

// Tables lists the dataset's tables.
func (d *Dataset) Tables() []string { return d.store.ListTables() }

// NumEpisodes is the number of episodes recorded so far.
func (d *Dataset) NumEpisodes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextEpisode
}

// Episodes returns the metadata table. The caller releases the record.
func (d *Dataset) Episodes(ctx context.Context) (arrow.Record, error) {
	return d.store.SelectTable(ctx, d.Name)
}

// EpisodeTable is the table holding the merged step values of an episode.
func (d *Dataset) EpisodeTable(id int) string {
	return fmt.Sprintf("%s_episode_%d", d.Name, id)
}
