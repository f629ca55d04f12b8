// Package source fetches transaction batches for the analytics engine from local files,
// Cloud Storage objects, or the BigQuery transactions table.
package source

import (
	"context"
	"errors"

	"github.com/dvloznov/finance-insights/internal/ingest"
)

var (
	// ErrUnsupportedURI is returned for object URIs that are not gs://bucket/object.
	ErrUnsupportedURI = errors.New("unsupported URI")

	// ErrMalformedPayload is returned when fetched bytes are not a transaction payload.
	ErrMalformedPayload = errors.New("malformed transaction payload")
)

// Source provides one normalized transaction batch per call.
type Source interface {
	Fetch(ctx context.Context) (ingest.Batch, error)
}

// decodePayload turns a JSON payload into a normalized batch.
func decodePayload(ctx context.Context, data []byte) (ingest.Batch, error) {
	raw, err := ingest.DecodeJSON(data)
	if err != nil {
		return ingest.Batch{}, errors.Join(ErrMalformedPayload, err)
	}
	return ingest.Normalize(ctx, raw), nil
}
