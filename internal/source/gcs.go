package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/KeplerC/fog-rtx/internal/domain"
)

// GCS reads objects from a Google Cloud Storage bucket. The public RT-X
// bucket needs no credentials.
type GCS struct {
	client *storage.Client
	loc    Location
}

// NewGCS creates a GCS bucket reader. An empty keyFile uses anonymous access.
func NewGCS(ctx context.Context, loc Location, keyFile string) (*GCS, error) {
	opts := []option.ClientOption{option.WithoutAuthentication()}
	if keyFile != "" {
		opts = []option.ClientOption{option.WithAuthCredentialsFile(option.ServiceAccount, keyFile)}
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCS{client: client, loc: loc}, nil
}

// Open streams the object at key.
func (g *GCS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.loc.Bucket).Object(g.loc.Key(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.ErrNotFound("object %q not found in %s", key, g.loc)
		}
		return nil, fmt.Errorf("read gs object %q: %w", g.loc.Key(key), err)
	}
	return r, nil
}

func (g *GCS) String() string { return g.loc.String() }

// Close releases the client.
func (g *GCS) Close() error { return g.client.Close() }
