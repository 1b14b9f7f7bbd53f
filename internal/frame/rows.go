package frame

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/KeplerC/fog-rtx/internal/domain"
)

// InsertData appends one row and returns its index. Values are placed in
// the table's column order; missing columns are NULL and keys that are not
// columns of the table are ignored.
func (s *Store) InsertData(ctx context.Context, tableName string, data Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(tableName)
	if err != nil {
		return -1, err
	}

	index := t.rows
	exprs := []string{"?"}
	args := []any{int64(index)}
	for _, c := range t.columns {
		expr, cellArgs, err := castExpr(c, data[c.Name])
		if err != nil {
			return -1, fmt.Errorf("insert into %q: %w", tableName, err)
		}
		exprs = append(exprs, expr)
		args = append(args, cellArgs...)
	}
	for k := range data {
		if _, ok := t.index[k]; !ok {
			s.logger.Debug("ignoring value for unknown column", "table", tableName, "column", k)
		}
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(tableName), insertColumns(t), strings.Join(exprs, ", "))
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return -1, fmt.Errorf("insert into %q: %w", tableName, err)
	}
	t.rows++
	s.logger.Debug("data inserted", "table", tableName, "index", index)
	return index, nil
}

func insertColumns(t *table) string {
	if len(t.columns) == 0 {
		return quoteIdent(rowColumn)
	}
	return quoteIdent(rowColumn) + ", " + t.selectList("")
}

// UpdateData writes each column=value cell of data into the row at index.
func (s *Store) UpdateData(ctx context.Context, tableName string, index int, data Row) error {
	if len(data) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(tableName)
	if err != nil {
		return err
	}
	if index < 0 || index >= t.rows {
		return domain.ErrNotFound("row %d out of range for table %q with %d rows", index, tableName, t.rows)
	}

	names := make([]string, 0, len(data))
	for k := range data {
		names = append(names, k)
	}
	sort.Strings(names)

	var (
		sets []string
		args []any
	)
	for _, name := range names {
		c, ok := t.column(name)
		if !ok {
			return domain.ErrNotFound("column %q does not exist in table %q", name, tableName)
		}
		expr, cellArgs, err := castExpr(c, data[name])
		if err != nil {
			return fmt.Errorf("update %q: %w", tableName, err)
		}
		sets = append(sets, quoteIdent(name)+" = "+expr)
		args = append(args, cellArgs...)
	}
	args = append(args, int64(index))

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(tableName), strings.Join(sets, ", "), quoteIdent(rowColumn))
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update %q row %d: %w", tableName, index, err)
	}
	s.logger.Debug("data updated", "table", tableName, "index", index, "columns", names)
	return nil
}

// castExpr returns a SQL expression that casts v to the column type, and the
// arguments it binds. Slices become list_value(...) so each element is bound
// separately; []byte stays a scalar BLOB.
func castExpr(c Column, v any) (string, []any, error) {
	if v == nil {
		return "CAST(NULL AS " + c.Type + ")", nil, nil
	}
	if _, ok := v.([]byte); ok {
		return "CAST(? AS " + c.Type + ")", []any{v}, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return "CAST(? AS " + c.Type + ")", []any{bindValue(v)}, nil
	}
	if !strings.HasSuffix(c.Type, "[]") {
		return "", nil, domain.ErrValidation("column %q of type %s cannot hold a list value", c.Name, c.Type)
	}
	n := rv.Len()
	if n == 0 {
		return "CAST([] AS " + c.Type + ")", nil, nil
	}
	elemType := strings.TrimSuffix(c.Type, "[]")
	placeholders := make([]string, n)
	args := make([]any, n)
	for i := 0; i < n; i++ {
		elem := rv.Index(i).Interface()
		if _, isBytes := elem.([]byte); !isBytes {
			if k := reflect.ValueOf(elem).Kind(); k == reflect.Slice || k == reflect.Array {
				return "", nil, domain.ErrValidation("column %q: nested lists are not supported", c.Name)
			}
		}
		placeholders[i] = "CAST(? AS " + elemType + ")"
		args[i] = bindValue(elem)
	}
	return "CAST(list_value(" + strings.Join(placeholders, ", ") + ") AS " + c.Type + ")", args, nil
}

// bindValue passes unsigned integers above math.MaxInt64 as decimal text,
// which database/sql cannot bind; the surrounding CAST restores the type.
func bindValue(v any) any {
	switch x := v.(type) {
	case uint64:
		if x > math.MaxInt64 {
			return strconv.FormatUint(x, 10)
		}
	case uint:
		if uint64(x) > math.MaxInt64 {
			return strconv.FormatUint(uint64(x), 10)
		}
	}
	return v
}
