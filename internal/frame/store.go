// Package frame stores named tables as DuckDB-backed dataframes. Joins,
// concatenation and casts are delegated to DuckDB; the Store only keeps the
// name -> schema registry and the row positions callers address rows by.
package frame

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2" // register the duckdb driver

	"github.com/KeplerC/fog-rtx/internal/domain"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("frame: store is closed")

// Column is a named, typed table column. Type is a DuckDB logical type.
type Column struct {
	Name string
	Type string
}

// Row maps column names to cell values.
type Row map[string]any

type table struct {
	name    string
	columns []Column
	index   map[string]int
	rows    int
}

func newTable(name string, columns []Column, rows int) *table {
	t := &table{name: name, columns: columns, index: make(map[string]int, len(columns)), rows: rows}
	for i, c := range columns {
		t.index[c.Name] = i
	}
	return t
}

func (t *table) addColumn(c Column) {
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
}

func (t *table) column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// selectList renders the visible columns of t, qualified by alias when set.
func (t *table) selectList(alias string) string {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		if alias != "" {
			cols[i] = qualified(alias, c.Name)
		} else {
			cols[i] = quoteIdent(c.Name)
		}
	}
	return strings.Join(cols, ", ")
}

// Store holds named tables in one DuckDB database.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	tables map[string]*table
	logger *slog.Logger
	closed bool
}

// Open opens a DuckDB database at path ("" for in-memory) and registers the
// tables already present in it. A nil logger uses slog.Default().
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		tables: make(map[string]*table),
		logger: logger.With("component", "frame"),
	}
	if err := s.loadTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// loadTables rebuilds the registry from information_schema.
func (s *Store) loadTables(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'main' AND table_type = 'BASE TABLE'`)
	if err != nil {
		return fmt.Errorf("list duckdb tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list duckdb tables: %w", err)
	}

	for _, name := range names {
		t, positional, err := s.describe(ctx, name)
		if err != nil {
			return err
		}
		if !positional {
			s.logger.Warn("skipping table without row positions", "table", name)
			continue
		}
		s.tables[name] = t
	}
	return nil
}

// describe reads a table's visible columns and row count from DuckDB.
// positional reports whether the hidden row column is present.
func (s *Store) describe(ctx context.Context, name string) (*table, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, name)
	if err != nil {
		return nil, false, fmt.Errorf("describe table %q: %w", name, err)
	}
	defer rows.Close() //nolint:errcheck

	var (
		columns    []Column
		positional bool
	)
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, false, fmt.Errorf("scan column of %q: %w", name, err)
		}
		if c.Name == rowColumn {
			positional = true
			continue
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("describe table %q: %w", name, err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(name)).Scan(&count); err != nil {
		return nil, false, fmt.Errorf("count rows of %q: %w", name, err)
	}
	return newTable(name, columns, count), positional, nil
}

// Path is the database file, or "" for an in-memory store.
func (s *Store) Path() string { return s.path }

// Close releases the underlying database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.tables = map[string]*table{}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close duckdb: %w", err)
	}
	return nil
}

// ListTables returns the registered table names in sorted order.
func (s *Store) ListTables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasTable reports whether name is registered.
func (s *Store) HasTable(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[name]
	return ok
}

// Columns returns a copy of the table's columns in order.
func (s *Store) Columns(name string) ([]Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return append([]Column(nil), t.columns...), nil
}

// ColumnType returns the DuckDB type of a column, and false when the table
// or column does not exist.
func (s *Store) ColumnType(tableName, column string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[tableName]
	if !ok {
		return "", false
	}
	c, ok := t.column(column)
	return c.Type, ok
}

// HasColumn reports whether the table exists and has the column.
func (s *Store) HasColumn(tableName, column string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[tableName]
	if !ok {
		return false
	}
	_, ok = t.index[column]
	return ok
}

// RowCount returns the number of rows in the table.
func (s *Store) RowCount(name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return t.rows, nil
}

// lookup must be called with s.mu held.
func (s *Store) lookup(name string) (*table, error) {
	if s.closed {
		return nil, ErrClosed
	}
	t, ok := s.tables[name]
	if !ok {
		s.logger.Error("table does not exist", "table", name)
		return nil, domain.ErrNotFound("table %q does not exist", name)
	}
	return t, nil
}
