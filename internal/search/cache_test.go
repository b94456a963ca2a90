package search

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*ResultCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewResultCache(client, 300*time.Second, zap.NewNop()), mr
}

// TestResultCache_PutGet 写入后可读回
func TestResultCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	entry := CacheEntry{
		Results: []RankedResult{
			{Result: Result{ID: "issue-1", Title: "t", Content: "c", Source: SourceDatabase, Score: 0.9}, FinalScore: 0.9},
		},
		Stats: Stats{Total: 1, DatabaseCount: 1},
	}

	key := CacheKey(Query{Text: "q"}, VisibilityScope{})
	cache.Put(ctx, key, entry)

	got := cache.Get(ctx, key)
	require.NotNil(t, got)
	assert.Equal(t, entry.Results[0].ID, got.Results[0].ID)
	assert.Equal(t, entry.Stats.Total, got.Stats.Total)
}

// TestResultCache_Miss 未写入的键返回nil
func TestResultCache_Miss(t *testing.T) {
	cache, _ := newTestCache(t)
	assert.Nil(t, cache.Get(context.Background(), "search:result:missing"))
}

// TestResultCache_TTLExpiry TTL到期后条目被淘汰
func TestResultCache_TTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key := CacheKey(Query{Text: "q"}, VisibilityScope{})
	cache.Put(ctx, key, CacheEntry{Stats: Stats{Total: 0}})
	require.NotNil(t, cache.Get(ctx, key))

	mr.FastForward(301 * time.Second)
	assert.Nil(t, cache.Get(ctx, key))
}

// TestResultCache_CorruptEntry 损坏的缓存值按未命中处理
func TestResultCache_CorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t)

	key := CacheKey(Query{Text: "q"}, VisibilityScope{})
	require.NoError(t, mr.Set(key, "{not json"))

	assert.Nil(t, cache.Get(context.Background(), key))
}

// TestCacheKey_Deterministic 相同参数生成相同键
func TestCacheKey_Deterministic(t *testing.T) {
	q := Query{Text: "q", Pattern: PatternMatch, Limit: 10}
	scope := VisibilityScope{Authenticated: true, WorkspaceIDs: []uint{3, 1, 2}}
	scope2 := VisibilityScope{Authenticated: true, WorkspaceIDs: []uint{2, 3, 1}}

	assert.Equal(t, CacheKey(q, scope), CacheKey(q, scope2), "工作区顺序不应影响缓存键")
}

// TestCacheKey_VariesByScope 不同可见范围的键不同
func TestCacheKey_VariesByScope(t *testing.T) {
	q := Query{Text: "q"}
	public := CacheKey(q, VisibilityScope{})
	member := CacheKey(q, VisibilityScope{Authenticated: true, WorkspaceIDs: []uint{1}})
	assert.NotEqual(t, public, member)
}

// TestCacheKey_VariesByUser 工作区集合相同的不同用户不共享缓存键
func TestCacheKey_VariesByUser(t *testing.T) {
	q := Query{Text: "q"}
	a := CacheKey(q, VisibilityScope{Authenticated: true, UserID: 1, WorkspaceIDs: []uint{5}})
	b := CacheKey(q, VisibilityScope{Authenticated: true, UserID: 2, WorkspaceIDs: []uint{5}})
	assert.NotEqual(t, a, b, "私有结果按作者过滤，不同用户的键必须不同")
}

// TestCacheKey_VariesByQuery 查询参数变化产生不同键
func TestCacheKey_VariesByQuery(t *testing.T) {
	scope := VisibilityScope{}
	a := CacheKey(Query{Text: "q", Pattern: PatternMatch}, scope)
	b := CacheKey(Query{Text: "q", Pattern: PatternPhrase}, scope)
	assert.NotEqual(t, a, b)
}
