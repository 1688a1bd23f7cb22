// internal/workers/catalog/load-route-catalog/config.go
package loadroutecatalog

import "time"

type Config struct {
	DataDir  string
	CacheTTL time.Duration
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		DataDir:  "data",
		CacheTTL: time.Hour,
		Timeout:  30 * time.Second,
	}
}
