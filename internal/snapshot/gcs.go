// Package snapshot archives fetched HTML so enrichment can re-run without
// re-fetching a source page.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
)

// GCSConfig captures the parameters required to archive snapshots in GCS.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// GCSStore archives HTML snapshots in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a GCS-backed snapshot store.
func NewGCS(client *storage.Client, cfg GCSConfig) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "snapshots"
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (s *GCSStore) objectPath(contentID string) string {
	return path.Join(s.prefix, contentID+".html")
}

// Put uploads the HTML snapshot and returns a gs:// URI.
func (s *GCSStore) Put(ctx context.Context, contentID string, html []byte) (string, error) {
	if contentID == "" {
		return "", fmt.Errorf("content id is required")
	}
	obj := s.objectPath(contentID)
	writer := s.client.Bucket(s.bucket).Object(obj).NewWriter(ctx)
	writer.ContentType = "text/html; charset=utf-8"
	if _, err := io.Copy(writer, bytes.NewReader(html)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write snapshot: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, obj), nil
}

// Get downloads a previously archived snapshot, reporting whether it exists.
func (s *GCSStore) Get(ctx context.Context, contentID string) ([]byte, bool, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.objectPath(contentID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open snapshot: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	return data, true, nil
}
