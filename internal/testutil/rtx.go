// Package testutil writes small synthetic RT-X datasets for tests across the
// codebase, in the same TFDS layout the real buckets use.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KeplerC/fog-rtx/internal/tfrecord"
)

// Version is the dataset version fixtures are written under.
const Version = "0.1.0"

// Instruction is the language instruction of every fixture step.
const Instruction = "pick up the block"

// Steps is the number of steps of the episode at global index i.
func Steps(i int) int { return i%3 + 2 }

// WriteRTXDataset writes <root>/<name>/0.1.0 with a dataset_info.json and one
// train shard per entry of shardLengths.
func WriteRTXDataset(t testing.TB, root, name string, shardLengths []int) {
	t.Helper()
	dir := filepath.Join(root, name, Version)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	lengths := make([]string, len(shardLengths))
	for i, n := range shardLengths {
		lengths[i] = strconv.Itoa(n)
	}
	info := map[string]any{
		"name":       name,
		"version":    Version,
		"fileFormat": "tfrecord",
		"splits": []map[string]any{{
			"name":             "train",
			"numBytes":         "1024",
			"shardLengths":     lengths,
			"filepathTemplate": "{DATASET}-{SPLIT}.{FILEFORMAT}-{SHARD_X_OF_Y}",
		}},
	}
	data, err := json.MarshalIndent(info, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataset_info.json"), data, 0o600))

	global := 0
	for shard, n := range shardLengths {
		file := fmt.Sprintf("%s-train.tfrecord-%05d-of-%05d", name, shard, len(shardLengths))
		f, err := os.Create(filepath.Join(dir, file))
		require.NoError(t, err)
		w := tfrecord.NewWriter(f)
		for j := 0; j < n; j++ {
			require.NoError(t, w.Write(Episode(global).Marshal()))
			global++
		}
		require.NoError(t, f.Close())
	}
}

// Episode builds the flattened RLDS example of the episode at global index i.
func Episode(i int) tfrecord.Example {
	steps := Steps(i)
	var (
		isFirst, isLast []int64
		reward, state   []float32
		action          []float32
		images, text    [][]byte
	)
	for s := 0; s < steps; s++ {
		isFirst = append(isFirst, boolInt(s == 0))
		isLast = append(isLast, boolInt(s == steps-1))
		reward = append(reward, float32(boolInt(s == steps-1)))
		state = append(state, float32(i), float32(s))
		action = append(action, 0.1, 0.2, float32(s))
		images = append(images, []byte{0xff, 0xd8, byte(s)})
		text = append(text, []byte(Instruction))
	}
	return tfrecord.Example{
		"steps/is_first":             {Kind: tfrecord.KindInt64, Ints: isFirst},
		"steps/is_last":              {Kind: tfrecord.KindInt64, Ints: isLast},
		"steps/reward":               {Kind: tfrecord.KindFloat, Floats: reward},
		"steps/observation/state":    {Kind: tfrecord.KindFloat, Floats: state},
		"steps/observation/image":    {Kind: tfrecord.KindBytes, Bytes: images},
		"steps/action":               {Kind: tfrecord.KindFloat, Floats: action},
		"steps/language_instruction": {Kind: tfrecord.KindBytes, Bytes: text},
		"episode_metadata/file_path": {Kind: tfrecord.KindBytes, Bytes: [][]byte{[]byte(fmt.Sprintf("episode_%d.npy", i))}},
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
