package frame

import (
	"context"
	"fmt"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/feature"
)

// CreateTable registers an empty table with no columns. An existing table of
// the same name is replaced.
func (s *Store) CreateTable(ctx context.Context, name string) error {
	if err := validateName("table", name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s BIGINT)", quoteIdent(name), quoteIdent(rowColumn))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %q: %w", name, err)
	}
	s.tables[name] = newTable(name, nil, 0)
	s.logger.Info("table created", "table", name)
	return nil
}

// AddColumn adds an all-null column of the given feature type. Adding a
// column that already exists is logged and ignored.
func (s *Store) AddColumn(ctx context.Context, tableName, column string, typ feature.Type) error {
	duckType, err := typ.DuckDBType()
	if err != nil {
		return err
	}
	return s.AddColumnType(ctx, tableName, column, duckType)
}

// AddColumnType is AddColumn with an explicit DuckDB type.
func (s *Store) AddColumnType(ctx context.Context, tableName, column, duckType string) error {
	if err := validateName("column", column); err != nil {
		return err
	}
	if err := validateColumnType(duckType); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(tableName)
	if err != nil {
		return err
	}
	if _, exists := t.index[column]; exists {
		s.logger.Warn("column already exists", "table", tableName, "column", column)
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(tableName), quoteIdent(column), duckType)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("add column %q to %q: %w", column, tableName, err)
	}
	t.addColumn(Column{Name: column, Type: duckType})
	s.logger.Info("column added", "table", tableName, "column", column, "type", duckType)
	return nil
}

// DropTable removes a table.
func (s *Store) DropTable(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE "+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop table %q: %w", name, err)
	}
	delete(s.tables, name)
	s.logger.Debug("table dropped", "table", name)
	return nil
}

// RenameTable renames a table, replacing any table already named to.
func (s *Store) RenameTable(ctx context.Context, from, to string) error {
	if err := validateName("table", to); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(from)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if _, exists := s.tables[to]; exists {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE "+quoteIdent(to)); err != nil {
			return fmt.Errorf("replace table %q: %w", to, err)
		}
		delete(s.tables, to)
	}
	stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(from), quoteIdent(to))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("rename table %q to %q: %w", from, to, err)
	}
	delete(s.tables, from)
	t.name = to
	s.tables[to] = t
	s.logger.Debug("table renamed", "from", from, "to", to)
	return nil
}

// ExportParquet writes the table, in row order, to a Parquet file.
func (s *Store) ExportParquet(ctx context.Context, name, path string) error {
	if path == "" {
		return domain.ErrValidation("export path is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(name)
	if err != nil {
		return err
	}
	if len(t.columns) == 0 {
		return domain.ErrValidation("table %q has no columns to export", name)
	}
	stmt := fmt.Sprintf("COPY (SELECT %s FROM %s ORDER BY %s) TO %s (FORMAT PARQUET)",
		t.selectList(""), quoteIdent(name), quoteIdent(rowColumn), quoteLiteral(path))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("export %q to parquet: %w", name, err)
	}
	s.logger.Info("table exported", "table", name, "path", path, "rows", t.rows)
	return nil
}
