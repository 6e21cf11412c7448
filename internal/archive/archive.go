// Package archive keeps a copy of every uploaded statement file in a GCS
// bucket. Archival is best-effort: a failed upload is logged and the import
// proceeds, since the parsed transactions are already in the database.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const uploadTimeout = 2 * time.Minute

// Archiver stores raw upload files in a bucket. The zero-bucket Archiver is
// a no-op, so callers never need to branch on whether archival is enabled.
type Archiver struct {
	client *storage.Client
	bucket string
	log    zerolog.Logger
	now    func() time.Time
}

// New creates an Archiver for the given bucket. An empty bucket name
// disables archival without error. Application Default Credentials are
// assumed.
func New(ctx context.Context, bucket string, log zerolog.Logger) (*Archiver, error) {
	a := &Archiver{bucket: bucket, log: log, now: time.Now}
	if bucket == "" {
		log.Info().Msg("No archive bucket configured, upload archival disabled")
		return a, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive.New: creating storage client: %w", err)
	}
	a.client = client

	log.Info().Str("bucket", bucket).Msg("Upload archival enabled")
	return a, nil
}

// Close releases the underlying storage client.
func (a *Archiver) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

// Store writes the file content to the bucket under a date-partitioned,
// collision-free object name and returns the gs:// URI. When archival is
// disabled it returns an empty URI and no error.
func (a *Archiver) Store(ctx context.Context, filename string, content io.Reader) (string, error) {
	if a.client == nil {
		return "", nil
	}

	objectName := a.objectName(filename)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("archive.Store %q: copying content: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("archive.Store %q: finalizing upload: %w", objectName, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", a.bucket, objectName)
	a.log.Info().Str("uri", uri).Msg("Upload archived")
	return uri, nil
}

// objectName builds uploads/YYYY/MM/DD/<uuid>-<basename>. The uuid prefix
// keeps re-uploads of the same filename from overwriting each other.
func (a *Archiver) objectName(filename string) string {
	t := a.now().UTC()
	return fmt.Sprintf("uploads/%04d/%02d/%02d/%s-%s",
		t.Year(), t.Month(), t.Day(), uuid.NewString()[:8], path.Base(filename))
}
