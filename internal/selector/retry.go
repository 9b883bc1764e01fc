package selector

import (
	"context"
	"time"
)

// retryDo runs fn up to attempts times with a fixed delay between attempts.
// It returns nil on the first success. The stop predicate short-circuits the
// remaining budget for errors that retrying cannot fix. Context cancellation
// always wins over the delay.
//
// Every tier goes through this one helper; there are no per-provider retry
// loops anywhere else.
func retryDo(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error, stop func(error) bool) error {
	if attempts <= 0 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn(i)
		if last == nil {
			return nil
		}
		if stop != nil && stop(last) {
			return last
		}
		if i == attempts-1 {
			break
		}
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}
	return last
}
