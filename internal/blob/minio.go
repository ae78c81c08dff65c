package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectAPI is the subset of the MinIO client used by MinioStore.
// [*minio.Client] satisfies it without adaptation.
type ObjectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

var _ ObjectAPI = (*minio.Client)(nil)

// MinioConfig configures an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string // host:port, no scheme
	Bucket    string
	AccessKey string
	SecretKey string //nolint:gosec // field name, not a credential
	UseSSL    bool
	PublicURL string // base URL objects are served from; default <scheme>://<endpoint>/<bucket>
}

// MinioStore implements Store on S3-compatible storage (MinIO, R2, S3).
type MinioStore struct {
	api       ObjectAPI
	bucket    string
	publicURL string
}

// NewMinioStore connects to an S3-compatible endpoint.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint + "/" + cfg.Bucket
	}
	return newMinioStore(client, cfg.Bucket, public), nil
}

func newMinioStore(api ObjectAPI, bucket, publicURL string) *MinioStore {
	return &MinioStore{api: api, bucket: bucket, publicURL: strings.TrimSuffix(publicURL, "/")}
}

func (s *MinioStore) Name() string { return "minio" }

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.api.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.publicURL + "/" + (&url.URL{Path: key}).EscapedPath(), nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objs []Object
	for obj := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		objs = append(objs, Object{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	sortNewestFirst(objs)
	return objs, nil
}

// Delete removes key. S3 deletes are idempotent, so the object is stat'ed
// first to report ErrNotExist.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if _, err := s.api.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrNotExist
		}
		return fmt.Errorf("stat %s: %w", key, err)
	}
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
