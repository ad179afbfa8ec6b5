//go:build gcp

package audit

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSArchive writes audit batches to a Google Cloud Storage bucket.
type GCSArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSArchiveConfig holds configuration for GCSArchive.
type GCSArchiveConfig struct {
	Bucket string
	Prefix string // Optional object prefix
}

// NewGCSArchive creates a GCS-backed archive sink (uses ADC by default).
func NewGCSArchive(ctx context.Context, cfg GCSArchiveConfig) (*GCSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Archive uploads one batch.
func (a *GCSArchive) Archive(ctx context.Context, name string, payload []byte) error {
	obj := a.client.Bucket(a.bucket).Object(a.prefix + name)
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed: %w", err)
	}
	return nil
}

// Close closes the GCS client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}
