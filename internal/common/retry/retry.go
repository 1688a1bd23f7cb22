// internal/common/retry/retry.go
package retry

import (
	"context"
	"fmt"
	"time"

	"bus-finder/internal/common/logger"
)

// Policy describes a bounded exponential backoff. The delay before attempt
// n+1 is InitialDelay * Multiplier^(n-1), capped at MaxDelay.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Retryable decides whether an error is worth another attempt.
	// nil retries every error.
	Retryable func(error) bool
}

// DefaultPolicy is three attempts starting at 4s, capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 4 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs operation until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done. The last operation error is
// returned unwrapped so callers can classify it.
func Do(ctx context.Context, p Policy, log logger.Logger, operationName string, operation func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = operation(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info(fmt.Sprintf("%s succeeded after retry", operationName), map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
			"error":       err,
			"attempt":     attempt,
			"maxAttempts": attempts,
			"nextRetryIn": delay.String(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	log.Error(fmt.Sprintf("%s failed after %d attempts", operationName, attempts), map[string]interface{}{
		"error": err,
	})
	return err
}
