package blob

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const noSuchKey = "NoSuchKey"

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	useSSL          bool
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		useSSL: false,
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

type MinioStore struct {
	cfg    *minioConfig
	client *minio.Client
}

var _ Store = (*MinioStore)(nil)

func NewMinioStore(opts ...MinioOpts) (*MinioStore, error) {
	cfg := newConfig(opts...)

	minioClient, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create minio client for %s", cfg.endpoint)
	}

	return &MinioStore{cfg: cfg, client: minioClient}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.bucket)
	if err != nil {
		return errors.Wrapf(err, "failed to check bucket %s", s.cfg.bucket)
	}
	if exists {
		return nil
	}

	zap.S().Named("blob").Infow("creating bucket", "bucket", s.cfg.bucket)
	if err := s.client.MakeBucket(ctx, s.cfg.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrapf(err, "failed to create bucket %s", s.cfg.bucket)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	newCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pr := newProgressReader(newCtx, r, key, size)

	info, err := s.client.PutObject(ctx, s.cfg.bucket, key, pr, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrapf(err, "failed to upload %s", key)
	}

	zap.S().Named("blob").Debugw("object uploaded", "bucket", s.cfg.bucket, "key", key, "size", info.Size)
	return nil
}

func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.cfg.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError(err, key)
	}

	// GetObject is lazy: Stat surfaces a missing key before the caller starts reading
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, s.mapError(err, key)
	}
	return object, nil
}

func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	err = s.mapError(err, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.mapError(err, key)
	}
	return nil
}

func (s *MinioStore) Type() string {
	return TypeMinio
}

func (s *MinioStore) mapError(err error, key string) error {
	if minio.ToErrorResponse(err).Code == noSuchKey {
		return errors.Wrapf(ErrNotFound, "%s/%s", s.cfg.bucket, key)
	}
	return errors.Wrapf(err, "failed to access %s/%s", s.cfg.bucket, key)
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) {
		c.secretAccessKey = secretKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}
