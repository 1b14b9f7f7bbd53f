package frame

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// SelectTable returns the table's contents in row order. The caller must
// Release the record.
func (s *Store) SelectTable(ctx context.Context, name string) (arrow.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	schema := arrowSchema(t.columns)
	if len(t.columns) == 0 {
		return array.NewRecord(schema, nil, int64(t.rows)), nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", t.selectList(""), quoteIdent(name), quoteIdent(rowColumn))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select %q: %w", name, err)
	}
	defer rows.Close() //nolint:errcheck

	rb := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer rb.Release()

	vals := make([]any, len(t.columns))
	ptrs := make([]any, len(t.columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	var n int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %q: %w", name, err)
		}
		for i, v := range vals {
			if err := appendValue(rb.Field(i), v); err != nil {
				return nil, fmt.Errorf("column %q of %q: %w", t.columns[i].Name, name, err)
			}
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %q: %w", name, err)
	}
	rec := rb.NewRecord()
	s.logger.Debug("table selected", "table", name, "rows", n)
	return rec, nil
}

func arrowSchema(columns []Column) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c.Name, Type: ArrowType(c.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// ArrowType maps a DuckDB logical type to the Arrow type SelectTable uses.
// Unrecognized types are rendered as strings.
func ArrowType(duckType string) arrow.DataType {
	t := strings.ToUpper(strings.TrimSpace(duckType))
	if strings.HasSuffix(t, "[]") {
		return arrow.ListOf(ArrowType(strings.TrimSuffix(t, "[]")))
	}
	switch t {
	case "BOOLEAN":
		return arrow.FixedWidthTypes.Boolean
	case "TINYINT":
		return arrow.PrimitiveTypes.Int8
	case "SMALLINT":
		return arrow.PrimitiveTypes.Int16
	case "INTEGER":
		return arrow.PrimitiveTypes.Int32
	case "BIGINT":
		return arrow.PrimitiveTypes.Int64
	case "UTINYINT":
		return arrow.PrimitiveTypes.Uint8
	case "USMALLINT":
		return arrow.PrimitiveTypes.Uint16
	case "UINTEGER":
		return arrow.PrimitiveTypes.Uint32
	case "UBIGINT":
		return arrow.PrimitiveTypes.Uint64
	case "FLOAT":
		return arrow.PrimitiveTypes.Float32
	case "DOUBLE":
		return arrow.PrimitiveTypes.Float64
	case "BLOB":
		return arrow.BinaryTypes.Binary
	case "TIMESTAMP_S":
		return &arrow.TimestampType{Unit: arrow.Second}
	case "TIMESTAMP_MS":
		return &arrow.TimestampType{Unit: arrow.Millisecond}
	case "TIMESTAMP":
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case "TIMESTAMP_NS":
		return &arrow.TimestampType{Unit: arrow.Nanosecond}
	default:
		return arrow.BinaryTypes.String
	}
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		b.Append(x)
	case *array.Int8Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int8(x))
	case *array.Int16Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int16(x))
	case *array.Int32Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(int32(x))
	case *array.Int64Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.Uint8Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(uint8(x))
	case *array.Uint16Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(uint16(x))
	case *array.Uint32Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(uint32(x))
	case *array.Uint64Builder:
		x, err := toUint64(v)
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.Float32Builder:
		x, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(float32(x))
	case *array.Float64Builder:
		x, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			b.Append(x)
		case string:
			b.AppendString(x)
		default:
			return fmt.Errorf("expected bytes, got %T", v)
		}
	case *array.StringBuilder:
		if x, ok := v.(string); ok {
			b.Append(x)
		} else {
			b.Append(fmt.Sprintf("%v", v))
		}
	case *array.TimestampBuilder:
		x, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time, got %T", v)
		}
		unit := b.Type().(*arrow.TimestampType).Unit
		ts, err := arrow.TimestampFromTime(x, unit)
		if err != nil {
			return err
		}
		b.Append(ts)
	case *array.ListBuilder:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("expected list, got %T", v)
		}
		b.Append(true)
		for _, item := range items {
			if err := appendValue(b.ValueBuilder(), item); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported arrow builder %T", b)
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	default:
		i, err := toInt64(v)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("expected unsigned integer, got %T", v)
		}
		return uint64(i), nil
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		i, err := toInt64(v)
		if err != nil {
			return 0, fmt.Errorf("expected float, got %T", v)
		}
		return float64(i), nil
	}
}
