package fetch

import (
	"context"
	"time"

	"github.com/devblac/dex-catalog/internal/catalog"
)

// Retry runs fn until it succeeds, maxRetries extra attempts are spent, or
// ctx ends. The delay doubles after each failure. Malformed-source errors are
// returned immediately since another attempt reads the same bytes.
// It returns the number of attempts made.
func Retry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) (int, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		if attempt >= maxRetries || catalog.IsKind(err, catalog.KindSourceMalformed) {
			return attempt + 1, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, err
		case <-timer.C:
		}

		delay *= 2
	}
}
