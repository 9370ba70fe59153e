// Package storage fetches statement files from Google Cloud Storage, for
// runs that point at uploaded documents instead of local files.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// Fetcher is the storage surface the entry points use. It exists so tests
// can substitute a fake for the real client.
type Fetcher interface {
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// GCS is the Google Cloud Storage implementation of Fetcher. It assumes
// Application Default Credentials are configured.
type GCS struct {
	client *storage.Client
}

var _ Fetcher = (*GCS)(nil)

// NewGCS creates a storage client. Close it when done.
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCS: create storage client: %w", err)
	}
	return &GCS{client: client}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// Fetch downloads the object a gs:// URI names.
func (g *GCS) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := SplitURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: open %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: read %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// List returns the gs:// URIs of all objects under prefix in the bucket.
func (g *GCS) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var uris []string

	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iterating %s/%s: %w", bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue // directory placeholder
		}
		uris = append(uris, "gs://"+bucket+"/"+attrs.Name)
	}
	return uris, nil
}

// SplitURI breaks "gs://bucket/path/to/file.pdf" into bucket and object
// path.
func SplitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// Filename extracts the object's base filename from a GCS URI.
// e.g. "gs://bucket/folder/file.pdf" → "file.pdf".
func Filename(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
