// Package cache stores answered queries in Redis so repeated questions skip
// the completion and prediction services.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mlops-agent/internal/common/config"
	apperrors "mlops-agent/internal/common/errors"
	"mlops-agent/internal/common/logger"
	"mlops-agent/internal/common/metrics"
	"mlops-agent/internal/models"

	"github.com/redis/go-redis/v9"
)

// ResponseCache is the subset the orchestrator needs.
type ResponseCache interface {
	Get(ctx context.Context, intent models.Intent, query string) (*models.AgentResponse, bool)
	Set(ctx context.Context, intent models.Intent, query string, resp *models.AgentResponse)
}

// RedisCache keeps AgentResponses under prefix + intent + hash(normalized query).
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func NewRedisCache(client redis.Cmdable, cfg config.CacheConfig, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    cfg.TTL(),
		prefix: cfg.KeyPrefix,
		logger: log.With(map[string]interface{}{"component": "response-cache"}),
	}
}

// Key returns the cache key of a query. Case and whitespace do not matter.
func Key(prefix string, intent models.Intent, query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return prefix + string(intent) + ":" + hex.EncodeToString(sum[:])
}

// Cacheable reports whether resp is a successful prediction answer. Clarify
// and error responses are never cached.
func Cacheable(resp *models.AgentResponse) bool {
	if resp == nil || !resp.Intent.Routable() || resp.ModelUsed == "" || resp.RawPrediction == nil {
		return false
	}
	_, failed := resp.RawPrediction.ErrorMessage()
	return !failed
}

func (c *RedisCache) Get(ctx context.Context, intent models.Intent, query string) (*models.AgentResponse, bool) {
	key := Key(c.prefix, intent, query)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed", map[string]interface{}{
			"key":   key,
			"error": apperrors.NewCacheUnavailableError(err),
		})
		return nil, false
	}

	var resp models.AgentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache entry is corrupt", map[string]interface{}{"key": key, "error": err})
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &resp, true
}

func (c *RedisCache) Set(ctx context.Context, intent models.Intent, query string, resp *models.AgentResponse) {
	if !Cacheable(resp) {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	key := Key(c.prefix, intent, query)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"key":   key,
			"error": apperrors.NewCacheUnavailableError(err),
		})
	}
}
