package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "search:result:"

// CacheEntry 缓存的排序结果
type CacheEntry struct {
	Results []RankedResult `json:"results"`
	Stats   Stats          `json:"stats"`
}

// ResultCache Redis结果缓存
// 所有失败只记日志不上抛，检索正确性不依赖缓存
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultCache 创建结果缓存
func NewResultCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &ResultCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// CacheKey 按请求参数与可见范围生成缓存键
// workspace_id/kb_id/use_ai在公共请求中已被Orchestrator清零，
// 因此同一查询的公共与认证变体不会互相污染
func CacheKey(q Query, scope VisibilityScope) string {
	payload := struct {
		Query           string  `json:"query"`
		Pattern         Pattern `json:"pattern"`
		Filters         Filters `json:"filters"`
		WorkspaceID     *uint   `json:"workspace_id"`
		KnowledgeBaseID *uint   `json:"kb_id"`
		UseAI           bool    `json:"use_ai"`
		Limit           int     `json:"limit"`
		MinScore        float64 `json:"min_score"`
		Scope           string  `json:"scope"`
	}{
		Query:           q.Text,
		Pattern:         q.Pattern,
		Filters:         q.Filters,
		WorkspaceID:     q.WorkspaceID,
		KnowledgeBaseID: q.KnowledgeBaseID,
		UseAI:           q.UseAI,
		Limit:           q.Limit,
		MinScore:        q.MinScore,
		Scope:           scope.scopeKey(),
	}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Get 读取缓存，未命中或缓存不可用返回nil
func (c *ResultCache) Get(ctx context.Context, key string) *CacheEntry {
	if c == nil || c.client == nil {
		return nil
	}

	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}

	var entry CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.Warn("search cache entry corrupted", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &entry
}

// Put 写入缓存，尽力而为
func (c *ResultCache) Put(ctx context.Context, key string, entry CacheEntry) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("search cache marshal failed", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("search cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// TTL 缓存有效期
func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}
