// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"bus-finder/internal/common/config"
	"bus-finder/internal/common/logger"
	"bus-finder/internal/common/retry"
)

// Connect opens a Zeebe client and waits for the broker topology to answer.
// Transient gateway errors are retried with p.
func Connect(ctx context.Context, cfg config.CamundaConfig, p retry.Policy, log logger.Logger) (zbc.Client, error) {
	requestTimeout := config.GetDuration(cfg.RequestTimeout)
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	if p.Retryable == nil {
		p.Retryable = IsRetryableZeebeError
	}

	var client zbc.Client
	err := retry.Do(ctx, p, log, "Zeebe client initialization", func(ctx context.Context) error {
		c, err := zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.BrokerAddress,
			UsePlaintextConnection: true,
		})
		if err != nil {
			return err
		}

		topoCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		if _, err := c.NewTopologyCommand().Send(topoCtx); err != nil {
			c.Close()
			return fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.BrokerAddress, err)
		}

		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// IsRetryableZeebeError checks if the error is transient and should be retried.
func IsRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
