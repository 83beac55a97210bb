// Package gcs reads and writes the snapshot file layout in a Cloud Storage
// bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/logger"
	"github.com/dvloznov/finance-agent/internal/snapshot"
)

// uploadTimeout bounds a single object upload.
const uploadTimeout = 2 * time.Minute

// ParseURI splits "gs://bucket/prefix" into bucket and prefix. The prefix may
// be empty.
func ParseURI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}

// SnapshotSource reads the snapshot layout from bucket/prefix. It holds a
// shared storage client.
type SnapshotSource struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewSnapshotSource creates a source over bucket/prefix. It assumes
// Application Default Credentials are configured.
func NewSnapshotSource(ctx context.Context, bucket, prefix string) (*SnapshotSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewSnapshotSource: creating storage client: %w", err)
	}
	return &SnapshotSource{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Close closes the storage client.
func (s *SnapshotSource) Close() error {
	return s.client.Close()
}

func (s *SnapshotSource) objectName(name string) string {
	return objectName(s.prefix, name)
}

func objectName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// ReadObject downloads one layout object. Missing objects are
// snapshot.ErrNotFound.
func (s *SnapshotSource) ReadObject(ctx context.Context, name string) ([]byte, error) {
	obj := s.objectName(name)
	rc, err := s.client.Bucket(s.bucket).Object(obj).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, snapshot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ReadObject: opening %s/%s: %w", s.bucket, obj, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: reading %s/%s: %w", s.bucket, obj, err)
	}
	return data, nil
}

// Load reads every layout object present under the prefix.
func (s *SnapshotSource) Load(ctx context.Context) (*domain.Snapshot, error) {
	return snapshot.LoadObjects(ctx, s)
}

// UploadDir copies the layout files found in dir to bucket/prefix and returns
// the object names written.
func (s *SnapshotSource) UploadDir(ctx context.Context, dir string) ([]string, error) {
	log := logger.FromContext(ctx)
	var written []string
	for _, name := range []string{snapshot.TransactionsFile, snapshot.BudgetFile, snapshot.InvestmentsFile, snapshot.GoalsFile} {
		local := filepath.Join(dir, name)
		if _, err := os.Stat(local); errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("file", local).Msg("skipping missing layout file")
			continue
		}
		if err := s.uploadFile(ctx, s.objectName(name), local); err != nil {
			return written, fmt.Errorf("UploadDir: %w", err)
		}
		written = append(written, s.objectName(name))
	}
	return written, nil
}

func (s *SnapshotSource) uploadFile(ctx context.Context, object, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy %s to GCS writer: %w", filePath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", object, err)
	}
	return nil
}
