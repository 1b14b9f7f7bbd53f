package rtx

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/feature"
	"github.com/KeplerC/fog-rtx/internal/source"
	"github.com/KeplerC/fog-rtx/internal/testutil"
	"github.com/KeplerC/fog-rtx/internal/tfrecord"
)

func TestDefaultDatasets(t *testing.T) {
	assert.Len(t, DefaultDatasets, 51)
	assert.Equal(t, "fractal20220817_data", DefaultDatasets[0])
	assert.Equal(t, "berkeley_gnm_cory_hall", DefaultDatasets[len(DefaultDatasets)-1])
	assert.NotContains(t, DefaultDatasets, "berkeley_gnm_sac_son")

	seen := map[string]bool{}
	for _, n := range DefaultDatasets {
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

func TestParseInfo(t *testing.T) {
	info, err := ParseInfo([]byte(`{
		"name": "kuka",
		"version": "0.1.0",
		"splits": [
			{"name": "train", "numBytes": "2048", "shardLengths": ["3", "2", 4]},
			{"name": "test", "shardLengths": ["1"], "filepathTemplate": "{DATASET}-{SPLIT}-{SHARD_INDEX}.{FILEFORMAT}"}
		]
	}`))
	require.NoError(t, err)
	info.Dir = "kuka/0.1.0"
	assert.Equal(t, "tfrecord", info.FileFormat)

	train, err := info.Split("train")
	require.NoError(t, err)
	assert.Equal(t, 3, train.NumShards())
	assert.Equal(t, int64(9), train.NumEpisodes())
	assert.Equal(t, "kuka/0.1.0/kuka-train.tfrecord-00001-of-00003", info.ShardPath(train, 1))

	test, err := info.Split("test")
	require.NoError(t, err)
	assert.Equal(t, "kuka/0.1.0/kuka-test-00000.tfrecord", info.ShardPath(test, 0))

	_, err = info.Split("validation")
	assert.True(t, domain.IsNotFound(err))
}

func TestParseInfo_Errors(t *testing.T) {
	_, err := ParseInfo([]byte(`{"fileFormat": "array_record"}`))
	assert.True(t, domain.IsValidation(err))

	_, err = ParseInfo([]byte(`{"splits": [{"shardLengths": ["x"]}]}`))
	assert.Error(t, err)

	_, err = ParseInfo([]byte(`not json`))
	assert.Error(t, err)
}

func TestSample_Sequential(t *testing.T) {
	s := &Split{Name: "train", ShardLengths: []int64String{2, 3, 1}}
	got := Sample(s, 4, false, 0)
	want := []Address{
		{Shard: 0, Offset: 0, Index: 0},
		{Shard: 0, Offset: 1, Index: 1},
		{Shard: 1, Offset: 0, Index: 2},
		{Shard: 1, Offset: 1, Index: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sample() mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, Sample(s, 100, false, 0), 6)
	assert.Nil(t, Sample(s, 0, true, 1))
	assert.Nil(t, Sample(&Split{}, 5, true, 1))
}

func TestSample_Shuffled(t *testing.T) {
	s := &Split{Name: "train", ShardLengths: []int64String{100, 50, 250}}
	a := Sample(s, 10, true, 42)
	b := Sample(s, 10, true, 42)
	c := Sample(s, 10, true, 7)

	require.Len(t, a, 10)
	assert.Equal(t, a, b, "same seed must give the same sample")
	assert.NotEqual(t, a, c)

	seen := map[int64]bool{}
	for i, addr := range a {
		assert.False(t, seen[addr.Index], "duplicate index %d", addr.Index)
		seen[addr.Index] = true
		assert.Less(t, addr.Offset, int(s.ShardLengths[addr.Shard]))
		if i > 0 {
			assert.Less(t, a[i-1].Index, addr.Index)
		}
	}

	all := Sample(s, 400, true, 3)
	assert.Len(t, all, 400)
}

func TestDecodeEpisode(t *testing.T) {
	ep, err := DecodeEpisode(testutil.Episode(1))
	require.NoError(t, err)
	assert.Equal(t, 3, ep.Steps)

	types := map[string]string{}
	for _, f := range ep.Features {
		types[f.Name] = f.Type.String()
	}
	assert.Equal(t, map[string]string{
		"action":               "float32[3]",
		"image":                "binary",
		"is_first":             "int64",
		"is_last":              "int64",
		"language_instruction": "string",
		"reward":               "float32",
		"state":                "float32[2]",
	}, types)

	require.Len(t, ep.Metadata, 1)
	assert.Equal(t, "file_path", ep.Metadata[0].Name)
	assert.Equal(t, "episode_1.npy", ep.Metadata[0].Value(0))

	byName := map[string]Feature{}
	for _, f := range ep.Features {
		byName[f.Name] = f
	}
	assert.Equal(t, []float32{1, 2}, byName["state"].Value(2))
	assert.Equal(t, int64(1), byName["is_first"].Value(0))
	assert.Equal(t, testutil.Instruction, byName["language_instruction"].Value(1))
	assert.Equal(t, []byte{0xff, 0xd8, 1}, byName["image"].Value(1))
	assert.Nil(t, byName["state"].Value(3))
}

func TestDecodeEpisode_Collisions(t *testing.T) {
	ex := tfrecord.Example{
		"steps/is_first":          {Kind: tfrecord.KindInt64, Ints: []int64{1, 0}},
		"steps/observation/state": {Kind: tfrecord.KindFloat, Floats: []float32{1, 2}},
		"steps/action/state":      {Kind: tfrecord.KindFloat, Floats: []float32{3, 4}},
		"steps/action/gripper":    {Kind: tfrecord.KindInt64, Ints: []int64{0, 1}},
	}
	ep, err := DecodeEpisode(ex)
	require.NoError(t, err)

	var names []string
	for _, f := range ep.Features {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"action_state", "gripper", "is_first", "observation_state"}, names)
}

func TestDecodeEpisode_NotRLDS(t *testing.T) {
	_, err := DecodeEpisode(tfrecord.Example{"label": {Kind: tfrecord.KindInt64, Ints: []int64{1}}})
	assert.True(t, domain.IsValidation(err))
}

func TestStepCount_WithoutMarkers(t *testing.T) {
	ex := tfrecord.Example{
		"steps/a": {Kind: tfrecord.KindFloat, Floats: []float32{1, 2, 3, 4, 5, 6}},
		"steps/b": {Kind: tfrecord.KindInt64, Ints: []int64{1, 2, 3}},
	}
	assert.Equal(t, 3, stepCount(ex))
	assert.Equal(t, feature.Type{DType: "float32", Shape: []int{2}}, feature.FromExample(ex["steps/a"], 3))
}

func TestReader_Episodes(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRTXDataset(t, root, "kuka", []int{3, 2, 4})
	ctx := context.Background()

	r, err := NewReader(ctx, source.NewLocal(root), "kuka", testutil.Version, "train", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), r.Split().NumEpisodes())
	assert.Equal(t, "kuka", r.Info().Name)

	addrs := []Address{
		{Shard: 0, Offset: 2, Index: 2},
		{Shard: 1, Offset: 0, Index: 3},
		{Shard: 2, Offset: 1, Index: 6},
		{Shard: 2, Offset: 3, Index: 8},
	}
	var got []int64
	err = r.Episodes(ctx, addrs, func(ep *Episode) error {
		got = append(got, ep.Index)
		assert.Equal(t, testutil.Steps(int(ep.Index)), ep.Steps)
		assert.Contains(t, ep.Source, "kuka-train.tfrecord-")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 6, 8}, got)
}

func TestReader_Errors(t *testing.T) {
	root := t.TempDir()
	testutil.WriteRTXDataset(t, root, "toto", []int{2})
	ctx := context.Background()
	bucket := source.NewLocal(root)

	_, err := NewReader(ctx, bucket, "missing", testutil.Version, "train", nil)
	assert.True(t, domain.IsNotFound(err))

	_, err = NewReader(ctx, bucket, "toto", testutil.Version, "test", nil)
	assert.True(t, domain.IsNotFound(err))

	r, err := NewReader(ctx, bucket, "toto", testutil.Version, "train", nil)
	require.NoError(t, err)

	err = r.Episodes(ctx, []Address{{Shard: 0, Offset: 5}}, func(*Episode) error { return nil })
	assert.True(t, domain.IsValidation(err))

	err = r.Episodes(ctx, []Address{{Shard: 0, Offset: 1}, {Shard: 0, Offset: 0}}, func(*Episode) error { return nil })
	assert.True(t, domain.IsValidation(err))

	stop := domain.ErrConflict("stop")
	err = r.Episodes(ctx, r.Sample(2, false, 0), func(*Episode) error { return stop })
	assert.ErrorIs(t, err, stop)
}
