package source

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/KeplerC/fog-rtx/internal/config"
	"github.com/KeplerC/fog-rtx/internal/domain"
)

// Azure reads blobs from an Azure Blob Storage container using a shared key.
type Azure struct {
	client *azblob.Client
	loc    Location
}

// NewAzure creates an Azure reader. loc.Bucket is the container name.
func NewAzure(loc Location, cfg config.StorageConfig) (*Azure, error) {
	if !cfg.HasAzureConfig() {
		return nil, domain.ErrValidation("Azure config is incomplete: set AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY")
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &Azure{client: client, loc: loc}, nil
}

// Open streams the blob at key.
func (a *Azure) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, a.loc.Bucket, a.loc.Key(key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, domain.ErrNotFound("object %q not found in %s", key, a.loc)
		}
		return nil, fmt.Errorf("read azure blob %q: %w", a.loc.Key(key), err)
	}
	return resp.Body, nil
}

func (a *Azure) String() string { return a.loc.String() }

// Close is a no-op.
func (a *Azure) Close() error { return nil }
