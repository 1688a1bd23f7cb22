// internal/workers/search/find-buses/config.go
package findbuses

import (
	"time"

	"bus-finder/internal/common/retry"
)

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	Retry    retry.Policy
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  30 * time.Second,
		CacheTTL: time.Hour,
		Retry:    retry.DefaultPolicy(),
	}
}
