package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kubev2v/stack-migration/internal/config"
)

const (
	TypeMinio      = "minio"
	TypeFilesystem = "fs"
)

var ErrNotFound = errors.New("blob not found")

// Store keeps backup containers and their manifests under flat keys.
type Store interface {
	// Put stores size bytes read from r under key. A negative size streams until EOF.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get returns the content stored under key. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Type() string
}

// New returns the store selected by the backup configuration.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Backup.BlobType {
	case TypeMinio:
		s, err := NewMinioStore(
			WithEndpoint(cfg.Backup.S3.Endpoint),
			WithBucket(cfg.Backup.S3.Bucket),
			WithAccessKey(cfg.Backup.S3.AccessKey),
			WithSecretKey(cfg.Backup.S3.SecretKey),
			WithSSL(cfg.Backup.S3.UseSSL),
		)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case TypeFilesystem:
		return NewFilesystemStore(cfg.Backup.Directory)
	default:
		return nil, fmt.Errorf("unknown blob store type %q", cfg.Backup.BlobType)
	}
}
