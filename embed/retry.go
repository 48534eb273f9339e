package embed

import (
	"context"
	"log/slog"
	"time"
)

// RetryWithBackoff runs operation until it succeeds, the context ends, or
// maxAttempts attempts have all failed. Embedding services behind this
// toolkit are typically local and briefly flaky (model loading, restarts),
// so the wait starts at baseDelay and doubles per attempt. The last
// attempt's error is returned; maxAttempts must be positive.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	delay := baseDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		if attempt == maxAttempts {
			return err
		}

		slog.Debug("embedding attempt failed, backing off",
			"attempt", attempt, "maxAttempts", maxAttempts, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
