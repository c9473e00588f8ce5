package checkpoints

import (
	"context"
	"io"
	"path"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// MinioConfig describes the bucket checkpoints are mirrored to
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// MinioMirror uploads checkpoint files to an S3-compatible bucket
type MinioMirror struct {
	client *miniogo.Client
	bucket string
	prefix string
}

// NewMinioMirror creates a mirror for cfg. No request is made until
// EnsureBucket or Upload is called.
func NewMinioMirror(cfg MinioConfig) (*MinioMirror, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}

	return &MinioMirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet
func (m *MinioMirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %s", m.bucket)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return errors.Wrapf(err, "create bucket %s", m.bucket)
		}
	}
	return nil
}

// Upload stores r under the mirror prefix
func (m *MinioMirror) Upload(ctx context.Context, name string, r io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.objectKey(name), r, size, miniogo.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return errors.Wrapf(err, "upload %s", name)
	}
	return nil
}

func (m *MinioMirror) objectKey(name string) string {
	prefix := strings.Trim(m.prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
