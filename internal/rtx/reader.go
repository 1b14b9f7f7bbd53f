package rtx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/KeplerC/fog-rtx/internal/domain"
	"github.com/KeplerC/fog-rtx/internal/source"
	"github.com/KeplerC/fog-rtx/internal/tfrecord"
)

// Reader streams episodes of one dataset split from a bucket.
type Reader struct {
	bucket source.Bucket
	info   *Info
	split  *Split
	logger *slog.Logger
}

// NewReader loads the dataset info and resolves the split.
func NewReader(ctx context.Context, bucket source.Bucket, name, version, split string, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := LoadInfo(ctx, bucket, name, version)
	if err != nil {
		return nil, err
	}
	s, err := info.Split(split)
	if err != nil {
		return nil, err
	}
	return &Reader{
		bucket: bucket,
		info:   info,
		split:  s,
		logger: logger.With("component", "rtx", "dataset", info.Name),
	}, nil
}

// Info returns the dataset info.
func (r *Reader) Info() *Info { return r.info }

// Split returns the split being read.
func (r *Reader) Split() *Split { return r.split }

// Sample picks episode addresses from the reader's split.
func (r *Reader) Sample(n int, shuffle bool, seed uint64) []Address {
	return Sample(r.split, n, shuffle, seed)
}

// Episodes reads the addressed episodes in order and calls fn for each.
// Addresses must be sorted by shard and offset, as Sample returns them.
func (r *Reader) Episodes(ctx context.Context, addrs []Address, fn func(*Episode) error) error {
	for start := 0; start < len(addrs); {
		end := start
		for end < len(addrs) && addrs[end].Shard == addrs[start].Shard {
			end++
		}
		if err := r.readShard(ctx, addrs[start:end], fn); err != nil {
			return err
		}
		start = end
	}
	return nil
}

func (r *Reader) readShard(ctx context.Context, addrs []Address, fn func(*Episode) error) error {
	key := r.info.ShardPath(r.split, addrs[0].Shard)
	rc, err := r.bucket.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open shard: %w", err)
	}
	defer rc.Close() //nolint:errcheck
	r.logger.Debug("reading shard", "key", key, "episodes", len(addrs))

	tr := tfrecord.NewReader(rc)
	pos := 0
	for _, addr := range addrs {
		if addr.Offset < pos {
			return domain.ErrValidation("episode addresses are not sorted: offset %d after %d", addr.Offset, pos)
		}
		for ; pos < addr.Offset; pos++ {
			if err := tr.Skip(); err != nil {
				return shardErr(key, pos, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := tr.Next()
		if err != nil {
			return shardErr(key, pos, err)
		}
		pos++

		ex, err := tfrecord.ParseExample(rec)
		if err != nil {
			return fmt.Errorf("%s record %d: %w", key, addr.Offset, err)
		}
		ep, err := DecodeEpisode(ex)
		if err != nil {
			return fmt.Errorf("%s record %d: %w", key, addr.Offset, err)
		}
		ep.Address = addr
		ep.Source = key
		if err := fn(ep); err != nil {
			return err
		}
	}
	return nil
}

func shardErr(key string, pos int, err error) error {
	if errors.Is(err, io.EOF) {
		return domain.ErrValidation("shard %s ends before record %d", key, pos)
	}
	return fmt.Errorf("read %s record %d: %w", key, pos, err)
}
