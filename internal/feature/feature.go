// Package feature describes the type of a recorded episode feature and maps
// dataset dtype names onto DuckDB column types.
package feature

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/tfrecord"
)

// Type is a dtype plus a per-step shape. An empty shape is a scalar.
type Type struct {
	DType string
	Shape []int
}

// Scalar returns a Type with no shape.
func Scalar(dtype string) Type { return Type{DType: dtype} }

// IsScalar reports whether the type has no shape.
func (t Type) IsScalar() bool { return len(t.Shape) == 0 }

// Elements is the number of values per step.
func (t Type) Elements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// String renders the type as "dtype" or "dtype[d0,d1]".
func (t Type) String() string {
	if t.IsScalar() {
		return t.DType
	}
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = strconv.Itoa(d)
	}
	return t.DType + "[" + strings.Join(dims, ",") + "]"
}

// DuckDBType returns the column type storing one step of this feature.
func (t Type) DuckDBType() (string, error) {
	base, err := DuckDBType(t.DType)
	if err != nil {
		return "", err
	}
	if t.IsScalar() {
		return base, nil
	}
	return base + "[]", nil
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if _, err := DuckDBType(s); err != nil {
			return Type{}, err
		}
		return Scalar(s), nil
	}
	// timestamp[ns] is a dtype, not a shape.
	if strings.HasPrefix(s, "timestamp[") && strings.Count(s, "[") == 1 {
		if _, err := DuckDBType(s); err != nil {
			return Type{}, err
		}
		return Scalar(s), nil
	}
	if !strings.HasSuffix(s, "]") {
		return Type{}, domain.ErrValidation("malformed feature type %q", s)
	}
	t := Type{DType: s[:open]}
	if _, err := DuckDBType(t.DType); err != nil {
		return Type{}, err
	}
	for _, part := range strings.Split(s[open+1:len(s)-1], ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 0 {
			return Type{}, domain.ErrValidation("malformed shape in feature type %q", s)
		}
		t.Shape = append(t.Shape, d)
	}
	return t, nil
}

var duckdbTypes = map[string]string{
	"null":          "INTEGER",
	"bool":          "BOOLEAN",
	"int8":          "TINYINT",
	"int16":         "SMALLINT",
	"int32":         "INTEGER",
	"int64":         "BIGINT",
	"uint8":         "UTINYINT",
	"uint16":        "USMALLINT",
	"uint32":        "UINTEGER",
	"uint64":        "UBIGINT",
	"float16":       "FLOAT",
	"float32":       "FLOAT",
	"float":         "FLOAT",
	"float64":       "DOUBLE",
	"double":        "DOUBLE",
	"string":        "VARCHAR",
	"large_string":  "VARCHAR",
	"utf8":          "VARCHAR",
	"binary":        "BLOB",
	"large_binary":  "BLOB",
	"timestamp[s]":  "TIMESTAMP_S",
	"timestamp[ms]": "TIMESTAMP_MS",
	"timestamp[us]": "TIMESTAMP",
	"timestamp[ns]": "TIMESTAMP_NS",
}

// DuckDBType maps a dataset dtype name (bool, int64, float32, string,
// large_binary, timestamp[ns], ...) to a DuckDB logical type.
func DuckDBType(dtype string) (string, error) {
	if t, ok := duckdbTypes[strings.ToLower(strings.TrimSpace(dtype))]; ok {
		return t, nil
	}
	return "", domain.ErrValidation("unsupported dtype %q", dtype)
}

// maxTextBytes bounds how long a byte feature can be and still count as text.
const maxTextBytes = 1024

// FromExample infers the per-step type of a decoded feature. steps is the
// episode length; features whose value count is not a multiple of it are
// treated as a single episode-level value.
func FromExample(f tfrecord.Feature, steps int) Type {
	var dtype string
	n := f.Len()
	switch f.Kind {
	case tfrecord.KindInt64:
		dtype = "int64"
	case tfrecord.KindFloat:
		dtype = "float32"
	case tfrecord.KindBytes:
		dtype = "string"
		for _, b := range f.Bytes {
			if len(b) > maxTextBytes || !utf8.Valid(b) {
				dtype = "binary"
				break
			}
		}
	default:
		return Scalar("null")
	}
	per := n
	if steps > 0 && n%steps == 0 {
		per = n / steps
	}
	if per == 1 {
		return Scalar(dtype)
	}
	return Type{DType: dtype, Shape: []int{per}}
}

// Validate returns an error when the type cannot be stored.
func (t Type) Validate() error {
	if _, err := t.DuckDBType(); err != nil {
		return fmt.Errorf("feature type %s: %w", t, err)
	}
	return nil
}
