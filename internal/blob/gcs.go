package blob

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSConfig captures the parameters for the Google Cloud Storage provider.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// GCS archives artifacts in a Cloud Storage bucket. Authentication uses
// Application Default Credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS initializes the client and verifies bucket access so bad
// configuration fails at startup, not mid-pipeline.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("access bucket %q: %w", cfg.Bucket, err)
	}
	return &GCS{client: client, bucket: cfg.Bucket}, nil
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// PutObject uploads the content and returns a gs:// URI.
func (g *GCS) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	w := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, path), nil
}
