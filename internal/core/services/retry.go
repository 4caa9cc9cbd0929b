package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/peertube-pod/internal/logging"
	"github.com/peertube-pod/internal/metrics"
)

type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// RetryTransaction runs fn again while it fails with ErrTransactionConflict.
// Any other error stops the retries and is returned as-is.
func RetryTransaction(ctx context.Context, policy RetryPolicy, errorMessage string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransactionConflict) {
			metrics.TransactionRetries.Inc()
			logging.Ctx(ctx).Debug().Err(err).Int("attempt", attempt).Msg("retrying transaction")
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, policy.MaxRetries), ctx))
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Int("attempts", attempt).Msg(errorMessage)
		return err
	}
	return nil
}
