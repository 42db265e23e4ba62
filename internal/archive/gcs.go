// Package archive stores finished task results as durable objects.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSArchive writes result objects to a Google Cloud Storage bucket.
type GCSArchive struct {
	client *storage.Client
	bucket string
}

// NewGCSArchive verifies bucket access and returns the archive. Credentials
// come from Application Default Credentials.
func NewGCSArchive(ctx context.Context, bucket string) (*GCSArchive, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive.gcs_bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	// Fail fast on startup when the bucket is missing or unreadable.
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("access bucket %q: %w", bucket, err)
	}
	return &GCSArchive{client: client, bucket: bucket}, nil
}

// NewGCSArchiveWithClient wraps an existing client (primarily for testing).
func NewGCSArchiveWithClient(client *storage.Client, bucket string) (*GCSArchive, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSArchive{client: client, bucket: bucket}, nil
}

// PutObject uploads data and returns its gs:// URI.
func (a *GCSArchive) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := a.client.Bucket(a.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, path), nil
}

// Close releases the storage client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}
