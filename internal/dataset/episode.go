package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/feature"
	"github.com/KeplerC/fog-rtx/internal/frame"
)

// EpisodeInfo describes where an episode came from.
type EpisodeInfo struct {
	Source      string
	RecordIndex int64
	// Steps is the episode length; 0 derives it from the recorded timestamps.
	Steps int
}

// Episode records the features of one episode. Values are buffered in one
// table per feature until Close merges them on Timestamp.
type Episode struct {
	ID int

	d            *Dataset
	row          int
	info         EpisodeInfo
	metadataOnly bool
	types        map[string]feature.Type
	tables       map[string]string
	maxTimestamp int64
	closed       bool
}

// NewEpisode appends a metadata row and returns an episode writing to it.
// With metadataOnly, Add records feature types but no values.
func (d *Dataset) NewEpisode(ctx context.Context, info EpisodeInfo, metadataOnly bool) (*Episode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextEpisode
	row, err := d.store.InsertData(ctx, d.Name, frame.Row{
		ColEpisodeID:   int64(id),
		ColSource:      info.Source,
		ColRecordIndex: info.RecordIndex,
		ColNumSteps:    int64(info.Steps),
	})
	if err != nil {
		return nil, fmt.Errorf("new episode: %w", err)
	}
	d.nextEpisode++
	return &Episode{
		ID:           id,
		d:            d,
		row:          row,
		info:         info,
		metadataOnly: metadataOnly,
		types:        map[string]feature.Type{},
		tables:       map[string]string{},
		maxTimestamp: -1,
	}, nil
}

// Add records a feature value at a step timestamp. The feature's type is
// written to the <name>_type metadata column the first time it is seen.
func (e *Episode) Add(ctx context.Context, name string, value any, typ feature.Type, timestamp int64) error {
	if e.closed {
		return domain.ErrConflict("episode %d of %q is closed", e.ID, e.d.Name)
	}
	if name == "" {
		return domain.ErrValidation("feature name is required")
	}
	if err := typ.Validate(); err != nil {
		return err
	}
	store := e.d.store

	if _, seen := e.types[name]; !seen {
		col := name + typeSuffix
		if err := store.AddColumnType(ctx, e.d.Name, col, "VARCHAR"); err != nil {
			return fmt.Errorf("add feature %q: %w", name, err)
		}
		if err := store.UpdateData(ctx, e.d.Name, e.row, frame.Row{col: typ.String()}); err != nil {
			return fmt.Errorf("add feature %q: %w", name, err)
		}
		e.types[name] = typ
	}
	if timestamp > e.maxTimestamp {
		e.maxTimestamp = timestamp
	}
	if e.metadataOnly {
		return nil
	}

	table, ok := e.tables[name]
	if !ok {
		table = e.d.EpisodeTable(e.ID) + "_" + name
		if err := store.CreateTable(ctx, table); err != nil {
			return err
		}
		if err := store.AddColumnType(ctx, table, frame.TimestampColumn, "BIGINT"); err != nil {
			return err
		}
		if err := store.AddColumn(ctx, table, name, e.types[name]); err != nil {
			return err
		}
		e.tables[name] = table
	}
	if _, err := store.InsertData(ctx, table, frame.Row{frame.TimestampColumn: timestamp, name: value}); err != nil {
		return fmt.Errorf("add %q at %d: %w", name, timestamp, err)
	}
	return nil
}

// SetMetadata stores an episode-level value in its own metadata column.
// Names that clash with the built-in columns are prefixed with "meta_". A
// value whose type differs from the column's goes to "<name>_<type>".
func (e *Episode) SetMetadata(ctx context.Context, name string, value any, typ feature.Type) error {
	if e.closed {
		return domain.ErrConflict("episode %d of %q is closed", e.ID, e.d.Name)
	}
	duckType, err := typ.DuckDBType()
	if err != nil {
		return err
	}
	col := name
	if isReservedColumn(col) {
		col = "meta_" + col
	}
	// An earlier episode may have fixed the column to another shape.
	if existing, ok := e.d.store.ColumnType(e.d.Name, col); ok && !strings.EqualFold(existing, duckType) {
		typed := col + "_" + typeColumnSuffix(typ)
		e.d.logger.Warn("metadata type differs from earlier episodes", "metadata", name,
			"column_type", existing, "type", typ.String(), "column", typed)
		col = typed
	}
	if err := e.d.store.AddColumnType(ctx, e.d.Name, col, duckType); err != nil {
		return fmt.Errorf("set metadata %q: %w", name, err)
	}
	return e.d.store.UpdateData(ctx, e.d.Name, e.row, frame.Row{col: value})
}

// Features returns the recorded feature names, sorted.
func (e *Episode) Features() []string {
	names := make([]string, 0, len(e.types))
	for n := range e.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Type returns the type recorded for a feature.
func (e *Episode) Type(name string) (feature.Type, bool) {
	t, ok := e.types[name]
	return t, ok
}

// Close finalizes the metadata row and merges the feature tables into the
// episode table. Closing twice is a no-op.
func (e *Episode) Close(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true
	store := e.d.store

	if e.info.Steps == 0 && !e.metadataOnly && e.maxTimestamp >= 0 {
		if err := store.UpdateData(ctx, e.d.Name, e.row, frame.Row{ColNumSteps: e.maxTimestamp + 1}); err != nil {
			return fmt.Errorf("close episode %d: %w", e.ID, err)
		}
	}
	if len(e.tables) == 0 {
		e.d.logger.Debug("episode closed", "episode", e.ID, "features", len(e.types))
		return nil
	}

	tables := make([]string, 0, len(e.tables))
	for _, n := range e.Features() {
		if t, ok := e.tables[n]; ok {
			tables = append(tables, t)
		}
	}
	output := e.d.EpisodeTable(e.ID)
	if len(tables) == 1 {
		if err := store.RenameTable(ctx, tables[0], output); err != nil {
			return fmt.Errorf("close episode %d: %w", e.ID, err)
		}
	} else {
		if err := store.MergeTablesWithTimestamp(ctx, tables, output); err != nil {
			return fmt.Errorf("close episode %d: %w", e.ID, err)
		}
		for _, t := range tables {
			if err := store.DropTable(ctx, t); err != nil {
				return fmt.Errorf("close episode %d: %w", e.ID, err)
			}
		}
	}
	e.d.logger.Debug("episode closed", "episode", e.ID, "features", len(e.types), "table", output)
	return nil
}

// Discard abandons an episode that failed part way: its buffered feature
// tables are dropped and it is closed without merging. Whatever was already
// written to the metadata row stays.
func (e *Episode) Discard(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true
	var errs []error
	for _, n := range e.Features() {
		t, ok := e.tables[n]
		if !ok {
			continue
		}
		if err := e.d.store.DropTable(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	e.d.logger.Debug("episode discarded", "episode", e.ID, "tables", len(e.tables))
	return errors.Join(errs...)
}

// typeColumnSuffix renders a feature type as identifier text, e.g.
// "int64[2]" becomes "int64_2".
func typeColumnSuffix(t feature.Type) string {
	return strings.Trim(strings.NewReplacer("[", "_", "]", "", ",", "_", " ", "").Replace(t.String()), "_")
}

func isReservedColumn(name string) bool {
	for _, c := range baseColumns {
		if c.Name == name {
			return true
		}
	}
	return strings.HasSuffix(name, typeSuffix)
}
