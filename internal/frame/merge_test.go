package frame_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/feature"
	"github.com/KeplerC/fog-rtx/internal/frame"
)

// seedFeatureTable creates a Timestamp/value table with one row per entry.
func seedFeatureTable(t *testing.T, s *frame.Store, name, column string, rows map[int64]float64) {
	t.Helper()
	require.NoError(t, s.CreateTable(ctx, name))
	require.NoError(t, s.AddColumn(ctx, name, frame.TimestampColumn, feature.Scalar("int64")))
	require.NoError(t, s.AddColumn(ctx, name, column, feature.Scalar("float64")))
	for ts, v := range rows {
		_, err := s.InsertData(ctx, name, frame.Row{frame.TimestampColumn: ts, column: v})
		require.NoError(t, err)
	}
}

func TestMergeTablesWithTimestamp(t *testing.T) {
	s := openStore(t)
	seedFeatureTable(t, s, "a", "x", map[int64]float64{3: 30, 1: 10})
	seedFeatureTable(t, s, "b", "y", map[int64]float64{2: 200, 3: 300})
	seedFeatureTable(t, s, "c", "z", map[int64]float64{4: 4000})

	require.NoError(t, s.MergeTablesWithTimestamp(ctx, []string{"a", "b", "c"}, "merged"))

	cols, err := s.Columns("merged")
	require.NoError(t, err)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Timestamp", "x", "y", "z"}, names)

	rec := selectTable(t, s, "merged")
	require.Equal(t, int64(4), rec.NumRows())

	ts := rec.Column(0).(*array.Int64)
	x := rec.Column(1).(*array.Float64)
	y := rec.Column(2).(*array.Float64)
	z := rec.Column(3).(*array.Float64)

	for i, want := range []int64{1, 2, 3, 4} {
		assert.Equal(t, want, ts.Value(i), "sorted by timestamp")
	}
	assert.InDelta(t, 10, x.Value(0), 1e-9)
	assert.True(t, y.IsNull(0))
	assert.True(t, x.IsNull(1))
	assert.InDelta(t, 200, y.Value(1), 1e-9)
	assert.InDelta(t, 30, x.Value(2), 1e-9)
	assert.InDelta(t, 300, y.Value(2), 1e-9)
	assert.True(t, z.IsNull(2))
	assert.InDelta(t, 4000, z.Value(3), 1e-9)

	// merged rows are addressable by position like any other table
	require.NoError(t, s.UpdateData(ctx, "merged", 3, frame.Row{"x": 40.0}))
	rec = selectTable(t, s, "merged")
	assert.InDelta(t, 40, rec.Column(1).(*array.Float64).Value(3), 1e-9)
}

func TestMergeTablesWithTimestamp_ColumnCollision(t *testing.T) {
	s := openStore(t)
	seedFeatureTable(t, s, "a", "v", map[int64]float64{1: 1})
	seedFeatureTable(t, s, "b", "v", map[int64]float64{1: 2})
	seedFeatureTable(t, s, "c", "v", map[int64]float64{1: 3})

	require.NoError(t, s.MergeTablesWithTimestamp(ctx, []string{"a", "b", "c"}, "merged"))

	cols, err := s.Columns("merged")
	require.NoError(t, err)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Timestamp", "v", "v_right", "v_right2"}, names)
}

func TestMergeTablesWithTimestamp_ReplacesOutput(t *testing.T) {
	s := openStore(t)
	seedFeatureTable(t, s, "a", "x", map[int64]float64{1: 1})
	seedFeatureTable(t, s, "b", "y", map[int64]float64{2: 2})
	require.NoError(t, s.CreateTable(ctx, "merged"))

	require.NoError(t, s.MergeTablesWithTimestamp(ctx, []string{"a", "b"}, "merged"))
	n, err := s.RowCount("merged")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMergeTablesWithTimestamp_Errors(t *testing.T) {
	s := openStore(t)
	seedFeatureTable(t, s, "a", "x", map[int64]float64{1: 1})
	require.NoError(t, s.CreateTable(ctx, "no_ts"))
	require.NoError(t, s.AddColumn(ctx, "no_ts", "x", feature.Scalar("int64")))

	err := s.MergeTablesWithTimestamp(ctx, []string{"a"}, "out")
	assert.True(t, domain.IsValidation(err))
	assert.False(t, s.HasTable("out"))

	err = s.MergeTablesWithTimestamp(ctx, []string{"a", "missing"}, "out")
	assert.True(t, domain.IsNotFound(err))

	err = s.MergeTablesWithTimestamp(ctx, []string{"a", "no_ts"}, "out")
	assert.True(t, domain.IsValidation(err))
}
