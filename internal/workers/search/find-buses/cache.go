package findbuses

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"bus-finder/internal/common/logger"
	"bus-finder/internal/common/metrics"
	"bus-finder/internal/models"
	"bus-finder/internal/workers/search/find-buses/queries"
)

const cacheKeyPrefix = "buses:"

// ResultCache stores search results in Redis keyed by the compiled query.
// A nil client disables it.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewResultCache(client *redis.Client, ttl time.Duration, log logger.Logger) *ResultCache {
	return &ResultCache{client: client, ttl: ttl, logger: log}
}

// Key is derived from the SQL text and bound values, so equal criteria map
// to the same entry.
func (c *ResultCache) Key(q queries.Query) string {
	h := sha256.New()
	h.Write([]byte(q.SQL))
	args, _ := json.Marshal(q.Args)
	h.Write([]byte{0})
	h.Write(args)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get reports a hit only for a readable entry. Redis errors count as a miss.
func (c *ResultCache) Get(ctx context.Context, key string) ([]models.BusListing, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.SearchCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		c.logger.Warn("result cache read failed, querying database", map[string]interface{}{
			"error": err.Error(),
		})
		metrics.SearchCache.WithLabelValues("error").Inc()
		return nil, false
	}

	var buses []models.BusListing
	if err := json.Unmarshal(data, &buses); err != nil {
		c.logger.Warn("discarding unreadable cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		metrics.SearchCache.WithLabelValues("error").Inc()
		return nil, false
	}

	metrics.SearchCache.WithLabelValues("hit").Inc()
	if buses == nil {
		buses = []models.BusListing{}
	}
	return buses, true
}

// Set stores buses, including an empty result.
func (c *ResultCache) Set(ctx context.Context, key string, buses []models.BusListing) {
	if c == nil || c.client == nil {
		return
	}
	if buses == nil {
		buses = []models.BusListing{}
	}

	data, err := json.Marshal(buses)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("result cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
		metrics.SearchCache.WithLabelValues("error").Inc()
	}
}
