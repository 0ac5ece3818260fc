package fabric

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/henk-fabric/library/db/redis"
	"github.com/Laisky/henk-fabric/library/log"
)

const resultCacheKeyPrefix = "henk:fabric:search:"

// ResultCache stores ranked results of finished searches.
// Implementations swallow their own errors, a broken cache only costs a cache miss.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]ScoredFabric, bool)
	Set(ctx context.Context, key string, results []ScoredFabric)
}

// RedisResultCache keeps search results as JSON strings in redis.
type RedisResultCache struct {
	kv     redis.KV
	ttl    time.Duration
	logger logSDK.Logger
}

// NewRedisResultCache builds a cache on kv. ttl <= 0 uses ten minutes.
func NewRedisResultCache(kv redis.KV, ttl time.Duration, logger logSDK.Logger) (*RedisResultCache, error) {
	if kv == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = log.Logger.Named("fabric_result_cache")
	}
	return &RedisResultCache{kv: kv, ttl: ttl, logger: logger}, nil
}

// Get implements ResultCache.
func (c *RedisResultCache) Get(ctx context.Context, key string) ([]ScoredFabric, bool) {
	payload, err := c.kv.GetItem(ctx, resultCacheKeyPrefix+key)
	if err != nil {
		if !redis.IsNil(err) {
			c.logger.Warn("read fabric result cache", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var results []ScoredFabric
	if err := json.Unmarshal([]byte(payload), &results); err != nil {
		c.logger.Warn("decode fabric result cache", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return results, true
}

// Set implements ResultCache.
func (c *RedisResultCache) Set(ctx context.Context, key string, results []ScoredFabric) {
	payload, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("encode fabric result cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.kv.SetItem(ctx, resultCacheKeyPrefix+key, string(payload), c.ttl); err != nil {
		c.logger.Warn("write fabric result cache", zap.String("key", key), zap.Error(err))
	}
}

type cacheKeyPayload struct {
	Criteria FabricSearchCriteria `json:"criteria"`
	TopK     int                  `json:"top_k"`
	Model    string               `json:"model"`
}

// searchKey is a stable digest of everything that influences a search result.
func searchKey(criteria FabricSearchCriteria, topK int, model string) (string, error) {
	criteria.Colors = normalizeSet(criteria.Colors)
	criteria.Patterns = normalizeSet(criteria.Patterns)
	criteria.Materials = normalizeSet(criteria.Materials)
	criteria.ExcludedColors = normalizeSet(criteria.ExcludedColors)
	criteria.ExcludedMaterials = normalizeSet(criteria.ExcludedMaterials)

	raw, err := json.Marshal(cacheKeyPayload{Criteria: criteria, TopK: topK, Model: model})
	if err != nil {
		return "", errors.Wrap(err, "marshal search key")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
