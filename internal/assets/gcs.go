package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"montage/internal/services"
)

const defaultUploadTimeout = 2 * time.Minute

// GCSConfig fixes the bucket parameters at construction.
type GCSConfig struct {
	Bucket string
	// PublicBaseURL fronts the bucket (CDN or static host). Empty falls back
	// to the storage.googleapis.com form.
	PublicBaseURL string
	// CredentialsFile points at a service account key; empty uses ambient
	// application-default credentials.
	CredentialsFile string
	UploadTimeout   time.Duration
}

// GCSStore publishes job artifacts to a Google Cloud Storage bucket.
type GCSStore struct {
	cfg    GCSConfig
	client *storage.Client
}

// NewGCSStore constructs the store and its underlying client.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("assets: bucket name required")
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = defaultUploadTimeout
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("assets: create storage client: %w", err)
	}
	return &GCSStore{cfg: cfg, client: client}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Upload(ctx context.Context, localPath string, jobID int64, kind Kind) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "processing", "upload", "open local file", err)
	}
	defer file.Close()

	key := objectKey(jobID, kind, localPath)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	writer := s.client.Bucket(s.cfg.Bucket).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		writer.ContentType = ct
	}
	if _, err := io.Copy(writer, file); err != nil {
		_ = writer.Close()
		return "", services.Wrap(services.ErrStorage, "processing", "upload", "write object "+key, err)
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrStorage, "processing", "upload", "close object "+key, err)
	}
	return s.publicURL(key), nil
}

func (s *GCSStore) Delete(ctx context.Context, publicURL string) error {
	key, err := s.keyFromURL(publicURL)
	if err != nil {
		return services.Wrap(services.ErrStorage, "processing", "delete", "", err)
	}
	err = s.client.Bucket(s.cfg.Bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return services.Wrap(services.ErrStorage, "processing", "delete", "object "+key, err)
	}
	return nil
}

func (s *GCSStore) publicURL(key string) string {
	if base := strings.TrimRight(strings.TrimSpace(s.cfg.PublicBaseURL), "/"); base != "" {
		return base + "/" + key
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.cfg.Bucket, key)
}

// keyFromURL inverts publicURL for both the CDN and the direct bucket form.
func (s *GCSStore) keyFromURL(publicURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(publicURL))
	if err != nil {
		return "", fmt.Errorf("parse asset url %q: %w", publicURL, err)
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if parsed.Host == "storage.googleapis.com" {
		key = strings.TrimPrefix(key, s.cfg.Bucket+"/")
	}
	if key == "" {
		return "", fmt.Errorf("asset url %q carries no object key", publicURL)
	}
	return key, nil
}
