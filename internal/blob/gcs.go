package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// GCSConfig configures a Google Cloud Storage (or Firebase Storage) bucket.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string // service account JSON; empty = Application Default Credentials
	Endpoint        string // API endpoint override (tests, fake-gcs-server)
	PublicURL       string // default https://storage.googleapis.com/<bucket>
}

// GCSStore implements Store on Google Cloud Storage.
type GCSStore struct {
	objects   *gcs.ObjectsService
	bucket    string
	publicURL string
}

// NewGCSStore creates a GCS-backed store.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		jsonKey, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account key: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, jsonKey, gcs.DevstorageReadWriteScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account key: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	default:
		creds, err := google.FindDefaultCredentials(ctx, gcs.DevstorageReadWriteScope)
		if err != nil {
			return nil, fmt.Errorf("find default credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	srv, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}

	public := cfg.PublicURL
	if public == "" {
		public = "https://storage.googleapis.com/" + cfg.Bucket
	}
	return &GCSStore{objects: srv.Objects, bucket: cfg.Bucket, publicURL: public}, nil
}

func (s *GCSStore) Name() string { return "gcs" }

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	obj := &gcs.Object{Name: key, ContentType: contentType}
	if _, err := s.objects.Insert(s.bucket, obj).Media(r, googleapi.ContentType(contentType)).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.publicURL + "/" + (&url.URL{Path: key}).EscapedPath(), nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objs []Object
	err := s.objects.List(s.bucket).Prefix(prefix).Pages(ctx, func(page *gcs.Objects) error {
		for _, item := range page.Items {
			updated, _ := time.Parse(time.RFC3339, item.Updated)
			objs = append(objs, Object{Key: item.Name, Size: int64(item.Size), LastModified: updated}) //nolint:gosec // object sizes fit int64
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sortNewestFirst(objs)
	return objs, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.objects.Delete(s.bucket, key).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
