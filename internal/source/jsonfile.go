package source

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/finance-insights/internal/ingest"
	"github.com/dvloznov/finance-insights/internal/logger"
)

// JSONFile reads a batch from a local JSON file.
type JSONFile struct {
	Path string
}

// Fetch implements Source.
func (f JSONFile) Fetch(ctx context.Context) (ingest.Batch, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return ingest.Batch{}, fmt.Errorf("JSONFile.Fetch: reading %s: %w", f.Path, err)
	}

	batch, err := decodePayload(ctx, data)
	if err != nil {
		return ingest.Batch{}, fmt.Errorf("JSONFile.Fetch: %s: %w", f.Path, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("path", f.Path).
		Int("transactions", len(batch.Transactions)).
		Msg("Loaded transactions from file")

	return batch, nil
}
