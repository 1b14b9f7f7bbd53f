package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/tfrecord"
)

func TestDuckDBType(t *testing.T) {
	tests := map[string]string{
		"bool":          "BOOLEAN",
		"int8":          "TINYINT",
		"int64":         "BIGINT",
		"uint8":         "UTINYINT",
		"float16":       "FLOAT",
		"float32":       "FLOAT",
		"float64":       "DOUBLE",
		"string":        "VARCHAR",
		"large_string":  "VARCHAR",
		"binary":        "BLOB",
		"large_binary":  "BLOB",
		"timestamp[ns]": "TIMESTAMP_NS",
		"Int32":         "INTEGER",
	}
	for in, want := range tests {
		got, err := DuckDBType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := DuckDBType("complex64")
	assert.True(t, domain.IsValidation(err))
}

func TestType_StringAndParse(t *testing.T) {
	tests := []struct {
		typ  Type
		text string
		duck string
	}{
		{Scalar("int64"), "int64", "BIGINT"},
		{Type{DType: "float32", Shape: []int{7}}, "float32[7]", "FLOAT[]"},
		{Type{DType: "uint8", Shape: []int{2, 3}}, "uint8[2,3]", "UTINYINT[]"},
		{Scalar("timestamp[ns]"), "timestamp[ns]", "TIMESTAMP_NS"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.typ.String())

			parsed, err := ParseType(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, parsed)

			duck, err := parsed.DuckDBType()
			require.NoError(t, err)
			assert.Equal(t, tt.duck, duck)
		})
	}
}

func TestParseType_Invalid(t *testing.T) {
	for _, in := range []string{"float32[x]", "float32[7", "quaternion", "nope[3]"} {
		_, err := ParseType(in)
		assert.Error(t, err, in)
	}
}

func TestType_Elements(t *testing.T) {
	assert.Equal(t, 1, Scalar("bool").Elements())
	assert.Equal(t, 6, Type{DType: "uint8", Shape: []int{2, 3}}.Elements())
}

func TestFromExample(t *testing.T) {
	tests := []struct {
		name  string
		f     tfrecord.Feature
		steps int
		want  string
	}{
		{"int scalar per step", tfrecord.Feature{Kind: tfrecord.KindInt64, Ints: []int64{1, 0, 0}}, 3, "int64"},
		{"float vector per step", tfrecord.Feature{Kind: tfrecord.KindFloat, Floats: make([]float32, 21)}, 3, "float32[7]"},
		{"text per step", tfrecord.Feature{Kind: tfrecord.KindBytes, Bytes: [][]byte{[]byte("pick"), []byte("pick")}}, 2, "string"},
		{"image per step", tfrecord.Feature{Kind: tfrecord.KindBytes, Bytes: [][]byte{{0xff, 0xd8, 0xff}, {0xff, 0xd8, 0xff}}}, 2, "binary"},
		{"episode level value", tfrecord.Feature{Kind: tfrecord.KindBytes, Bytes: [][]byte{[]byte("/ep.h5")}}, 4, "string"},
		{"ragged falls back to total", tfrecord.Feature{Kind: tfrecord.KindFloat, Floats: make([]float32, 5)}, 3, "float32[5]"},
		{"empty feature", tfrecord.Feature{}, 3, "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromExample(tt.f, tt.steps)
			assert.Equal(t, tt.want, got.String())
			assert.NoError(t, got.Validate())
		})
	}
}
