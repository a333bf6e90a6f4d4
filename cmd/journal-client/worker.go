package main

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/m-lab/counters/counters"
	"github.com/m-lab/counters/journal"
	"github.com/m-lab/counters/static"
)

// processor is implemented by *journal.Processor.
type processor interface {
	Process(ctx context.Context, batch journal.Batch) error
}

// retryConfig parameterizes the exponential backoff applied while the
// counters backend is unavailable.
type retryConfig struct {
	InitialInterval     time.Duration
	RandomizationFactor float64
	Multiplier          float64
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
}

var defaultRetry = retryConfig{
	InitialInterval:     static.BackoffInitialInterval,
	RandomizationFactor: static.BackoffRandomizationFactor,
	Multiplier:          static.BackoffMultiplier,
	MaxInterval:         static.BackoffMaxInterval,
	MaxElapsedTime:      static.BackoffMaxElapsedTime,
}

func (r retryConfig) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.InitialInterval
	b.RandomizationFactor = r.RandomizationFactor
	b.Multiplier = r.Multiplier
	b.MaxInterval = r.MaxInterval
	b.MaxElapsedTime = r.MaxElapsedTime
	return b
}

// newWorker returns a journal worker processing batches with p. Batches
// failing because the backend is unavailable are retried with exponential
// backoff; if the backend stays down the error is returned and the batch is
// not committed. Any other error is logged and the batch is committed.
func newWorker(p processor, retry retryConfig) journal.WorkerFunc {
	return func(ctx context.Context, batch journal.Batch) error {
		op := func() error {
			err := p.Process(ctx, batch)
			if err == nil {
				return nil
			}
			if !counters.IsUnavailable(err) {
				return backoff.Permanent(err)
			}
			log.Warnf("counters backend unavailable (will retry): %v", err)
			return err
		}
		err := backoff.Retry(op, backoff.WithContext(retry.backoff(), ctx))
		if err != nil && !counters.IsUnavailable(err) && ctx.Err() == nil {
			log.Errorf("dropping batch after processing error: %v", err)
			return nil
		}
		return err
	}
}
