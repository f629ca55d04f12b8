package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/finance-insights/internal/ingest"
	"github.com/dvloznov/finance-insights/internal/logger"
)

// ObjectReader reads whole objects from a bucket.
// This interface enables mocking of Cloud Storage in tests.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// StorageReader is the ObjectReader backed by Cloud Storage.
type StorageReader struct {
	client *storage.Client
}

// NewStorageReader wraps a caller-owned storage client.
func NewStorageReader(client *storage.Client) *StorageReader {
	return &StorageReader{client: client}
}

// ReadObject downloads the full contents of bucket/object.
func (s *StorageReader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: opening %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ReadObject: reading bytes: %w", err)
	}
	return data, nil
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object name.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("%w: %q: want gs:// scheme", ErrUnsupportedURI, uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q: no object path", ErrUnsupportedURI, uri)
	}
	return parts[0], parts[1], nil
}

// GCSObject reads a batch from a JSON object in Cloud Storage.
type GCSObject struct {
	reader ObjectReader
	uri    string
	bucket string
	object string
}

// NewGCSObject validates uri and returns a source reading it through reader.
func NewGCSObject(reader ObjectReader, uri string) (*GCSObject, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("NewGCSObject: %w", err)
	}
	return &GCSObject{reader: reader, uri: uri, bucket: bucket, object: object}, nil
}

// Fetch implements Source.
func (g *GCSObject) Fetch(ctx context.Context) (ingest.Batch, error) {
	data, err := g.reader.ReadObject(ctx, g.bucket, g.object)
	if err != nil {
		return ingest.Batch{}, fmt.Errorf("GCSObject.Fetch: %w", err)
	}

	batch, err := decodePayload(ctx, data)
	if err != nil {
		return ingest.Batch{}, fmt.Errorf("GCSObject.Fetch: %s: %w", g.uri, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("gcs_uri", g.uri).
		Int("bytes", len(data)).
		Int("transactions", len(batch.Transactions)).
		Msg("Loaded transactions from GCS")

	return batch, nil
}
