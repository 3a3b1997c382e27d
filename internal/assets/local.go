package assets

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"montage/internal/services"
)

// LocalStore keeps artifacts under a directory on disk. It exists for
// development and tests; the URL contract matches the bucket-backed store.
type LocalStore struct {
	baseDir string
	baseURL string
}

// NewLocalStore roots the store at baseDir. publicBaseURL prefixes returned
// URLs; empty yields file:// URLs.
func NewLocalStore(baseDir, publicBaseURL string) (*LocalStore, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return nil, fmt.Errorf("assets: local directory required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("assets: create local directory: %w", err)
	}
	return &LocalStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

func (s *LocalStore) Upload(ctx context.Context, localPath string, jobID int64, kind Kind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrStorage, "processing", "upload", "", err)
	}
	source, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "processing", "upload", "open local file", err)
	}
	defer source.Close()

	key := objectKey(jobID, kind, localPath)
	destPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, "processing", "upload", "create object directory", err)
	}
	dest, err := os.Create(destPath)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "processing", "upload", "create object file", err)
	}
	defer dest.Close()
	if _, err := io.Copy(dest, source); err != nil {
		return "", services.Wrap(services.ErrStorage, "processing", "upload", "copy object "+key, err)
	}

	if s.baseURL != "" {
		return s.baseURL + "/" + key, nil
	}
	return "file://" + destPath, nil
}

func (s *LocalStore) Delete(ctx context.Context, publicURL string) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrStorage, "processing", "delete", "", err)
	}
	destPath, err := s.pathFromURL(publicURL)
	if err != nil {
		return services.Wrap(services.ErrStorage, "processing", "delete", "", err)
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return services.Wrap(services.ErrStorage, "processing", "delete", "remove "+destPath, err)
	}
	return nil
}

func (s *LocalStore) pathFromURL(publicURL string) (string, error) {
	publicURL = strings.TrimSpace(publicURL)
	if strings.HasPrefix(publicURL, "file://") {
		return strings.TrimPrefix(publicURL, "file://"), nil
	}
	parsed, err := url.Parse(publicURL)
	if err != nil {
		return "", fmt.Errorf("parse asset url %q: %w", publicURL, err)
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if key == "" {
		return "", fmt.Errorf("asset url %q carries no object key", publicURL)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(key)), nil
}
