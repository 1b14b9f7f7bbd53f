package rtx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/source"
)

const (
	infoFileName        = "dataset_info.json"
	defaultFileFormat   = "tfrecord"
	defaultPathTemplate = "{DATASET}-{SPLIT}.{FILEFORMAT}-{SHARD_X_OF_Y}"
)

// int64String decodes proto3 JSON int64 values, which TFDS writes as strings.
type int64String int64

func (n *int64String) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse int64 %s: %w", b, err)
	}
	*n = int64String(v)
	return nil
}

// Split is one split of a dataset and the episode count of each shard.
type Split struct {
	Name             string        `json:"name"`
	ShardLengths     []int64String `json:"shardLengths"`
	NumBytes         int64String   `json:"numBytes"`
	FilepathTemplate string        `json:"filepathTemplate"`
}

// NumShards is the number of TFRecord files in the split.
func (s *Split) NumShards() int { return len(s.ShardLengths) }

// NumEpisodes is the total number of episodes across shards.
func (s *Split) NumEpisodes() int64 {
	var n int64
	for _, l := range s.ShardLengths {
		n += int64(l)
	}
	return n
}

// Info is the subset of a TFDS dataset_info.json used to locate episodes.
type Info struct {
	Name       string  `json:"name"`
	Version    string  `json:"version"`
	FileFormat string  `json:"fileFormat"`
	Splits     []Split `json:"splits"`

	// Dir is the dataset directory relative to the source root.
	Dir string `json:"-"`
}

// LoadInfo reads <name>/<version>/dataset_info.json from the bucket.
func LoadInfo(ctx context.Context, bucket source.Bucket, name, version string) (*Info, error) {
	dir := path.Join(name, version)
	rc, err := bucket.Open(ctx, path.Join(dir, infoFileName))
	if err != nil {
		return nil, fmt.Errorf("open %s info: %w", name, err)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s info: %w", name, err)
	}
	info, err := ParseInfo(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	info.Dir = dir
	if info.Name == "" {
		info.Name = name
	}
	if info.Version == "" {
		info.Version = version
	}
	return info, nil
}

// ParseInfo decodes dataset_info.json content.
func ParseInfo(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse dataset info: %w", err)
	}
	if info.FileFormat == "" {
		info.FileFormat = defaultFileFormat
	}
	if info.FileFormat != defaultFileFormat {
		return nil, domain.ErrValidation("unsupported file format %q", info.FileFormat)
	}
	return &info, nil
}

// Split returns the named split.
func (i *Info) Split(name string) (*Split, error) {
	for k := range i.Splits {
		if i.Splits[k].Name == name {
			return &i.Splits[k], nil
		}
	}
	return nil, domain.ErrNotFound("dataset %q has no split %q", i.Name, name)
}

// ShardPath returns the key of one shard of a split, relative to the source root.
func (i *Info) ShardPath(s *Split, shard int) string {
	tmpl := s.FilepathTemplate
	if tmpl == "" {
		tmpl = defaultPathTemplate
	}
	total := s.NumShards()
	r := strings.NewReplacer(
		"{DATASET}", i.Name,
		"{SPLIT}", s.Name,
		"{FILEFORMAT}", i.FileFormat,
		"{SHARD_X_OF_Y}", fmt.Sprintf("%05d-of-%05d", shard, total),
		"{SHARD_INDEX}", fmt.Sprintf("%05d", shard),
		"{NUM_SHARDS}", fmt.Sprintf("%05d", total),
	)
	return path.Join(i.Dir, r.Replace(tmpl))
}
