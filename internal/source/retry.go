package source

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
	"github.com/dvloznov/finance-insights/internal/config"
	"github.com/dvloznov/finance-insights/internal/ingest"
	"github.com/dvloznov/finance-insights/internal/logger"
)

// Retrying retries a Source with exponential backoff. Errors that cannot succeed on retry
// (bad URI, missing object, malformed payload) stop immediately.
type Retrying struct {
	src Source
	cfg config.RetryConfig
}

// NewRetrying wraps src.
func NewRetrying(src Source, cfg config.RetryConfig) *Retrying {
	return &Retrying{src: src, cfg: cfg}
}

func (r *Retrying) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		b.InitialInterval = r.cfg.InitialInterval
	}
	b.MaxElapsedTime = r.cfg.MaxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries)), ctx)
}

// Fetch implements Source.
func (r *Retrying) Fetch(ctx context.Context) (ingest.Batch, error) {
	log := logger.FromContext(ctx)

	var batch ingest.Batch
	attempt := 0
	op := func() error {
		attempt++
		b, err := r.src.Fetch(ctx)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		batch = b
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("Fetch failed, retrying")
	}

	if err := backoff.RetryNotify(op, r.backOff(ctx), notify); err != nil {
		return ingest.Batch{}, err
	}
	return batch, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedURI) ||
		errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, storage.ErrObjectNotExist) ||
		errors.Is(err, storage.ErrBucketNotExist) ||
		errors.Is(err, context.Canceled)
}
