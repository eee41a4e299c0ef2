package services

import (
	"context"
	"time"

	"github.com/engineerhub/engineerhub/internal/server/models"
)

// BlobStore is the object storage the services keep note files in.
// blobstore.S3Store implements it.
type BlobStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]models.BlobObject, error)
	Stat(ctx context.Context, key string) (*models.BlobObject, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}
