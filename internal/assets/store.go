package assets

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Kind names the artifact slot an upload fills within a job.
type Kind string

const (
	KindMedia     Kind = "media"
	KindThumbnail Kind = "thumbnail"
)

// Store is the object storage surface the pipeline publishes to.
type Store interface {
	// Upload copies a local file to durable storage and returns its public URL.
	Upload(ctx context.Context, localPath string, jobID int64, kind Kind) (string, error)
	// Delete removes the object behind a previously returned URL. Deleting an
	// object that no longer exists succeeds.
	Delete(ctx context.Context, publicURL string) error
}

// objectKey lays out job artifacts as jobs/<id>/<kind><ext> so a job's
// outputs group under one prefix.
func objectKey(jobID int64, kind Kind, localPath string) string {
	ext := strings.ToLower(path.Ext(localPath))
	return fmt.Sprintf("jobs/%d/%s%s", jobID, kind, ext)
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return ""
	}
}
