// Package source opens the object stores RT-X datasets are published in.
package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/time/rate"

	"github.com/KeplerC/fog-rtx/internal/config"
	"github.com/KeplerC/fog-rtx/internal/domain"
)

// Bucket reads objects by key relative to a root prefix.
type Bucket interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// String identifies the bucket root in logs, e.g. gs://gresearch/robotics.
	String() string
	Close() error
}

// Location is a parsed source URI.
type Location struct {
	Scheme string // gs, s3, az or file
	Bucket string // bucket or container; empty for file
	Prefix string // key prefix inside the bucket, or the directory for file
}

// ParseURI splits a source URI. Paths without a scheme are local directories.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, domain.ErrValidation("source URI is required")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: "file", Prefix: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parse source URI %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return Location{Scheme: "file", Prefix: u.Path}, nil
	case "gs", "s3", "az":
		if u.Host == "" {
			return Location{}, domain.ErrValidation("source URI %q has no bucket", uri)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	default:
		return Location{}, domain.ErrValidation("unsupported source scheme %q in %q", u.Scheme, uri)
	}
}

// Key joins the location prefix with a relative key.
func (l Location) Key(key string) string {
	if l.Prefix == "" {
		return key
	}
	return path.Join(l.Prefix, key)
}

func (l Location) String() string {
	if l.Scheme == "file" {
		return l.Prefix
	}
	if l.Prefix == "" {
		return fmt.Sprintf("%s://%s", l.Scheme, l.Bucket)
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Prefix)
}

// Open returns the Bucket for uri using the credentials in cfg.
func Open(ctx context.Context, uri string, cfg config.StorageConfig) (Bucket, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case "gs":
		return NewGCS(ctx, loc, cfg.GCSKeyFile)
	case "s3":
		return NewS3(loc, cfg)
	case "az":
		return NewAzure(loc, cfg)
	default:
		return NewLocal(loc.Prefix), nil
	}
}

// RateLimited throttles Open calls on b to rps per second. rps <= 0 returns b.
func RateLimited(b Bucket, rps float64) Bucket {
	if rps <= 0 {
		return b
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &limitedBucket{Bucket: b, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

type limitedBucket struct {
	Bucket
	limiter *rate.Limiter
}

func (l *limitedBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return l.Bucket.Open(ctx, key)
}
