package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/KeplerC/fog-rtx/internal/config"
	"github.com/KeplerC/fog-rtx/internal/domain"
)

// S3 reads objects from an S3-compatible bucket (mirrors of the RT-X data).
type S3 struct {
	client *s3.Client
	loc    Location
}

// NewS3 creates an S3 reader with static credentials and path-style addressing.
func NewS3(loc Location, cfg config.StorageConfig) (*S3, error) {
	if !cfg.HasS3Config() {
		return nil, domain.ErrValidation("S3 config is incomplete: set KEY_ID, SECRET, ENDPOINT and REGION")
	}
	endpoint := *cfg.S3Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	client := s3.New(s3.Options{
		Region: *cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			*cfg.S3KeyID, *cfg.S3Secret, "",
		),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})
	return &S3{client: client, loc: loc}, nil
}

// Open streams the object at key.
func (b *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.loc.Bucket),
		Key:    aws.String(b.loc.Key(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, domain.ErrNotFound("object %q not found in %s", key, b.loc)
		}
		return nil, fmt.Errorf("read s3 object %q: %w", b.loc.Key(key), err)
	}
	return out.Body, nil
}

func (b *S3) String() string { return b.loc.String() }

// Close is a no-op; the SDK client holds no resources that need releasing.
func (b *S3) Close() error { return nil }
