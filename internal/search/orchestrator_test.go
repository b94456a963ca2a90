package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/trackhub/backend-go/internal/errors"
	"go.uber.org/zap"
)

// fakeAdapter 测试用检索源
type fakeAdapter struct {
	name    Source
	results []Result
	err     error
	calls   int32
}

func (f *fakeAdapter) Name() Source { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context, query Query, scope VisibilityScope) ([]Result, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newTestOrchestrator(t *testing.T, adapters []SourceAdapter, withCache bool) (*Orchestrator, *miniredis.Miniredis) {
	t.Helper()
	var cache *ResultCache
	var mr *miniredis.Miniredis
	if withCache {
		mr = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cache = NewResultCache(client, 300*time.Second, zap.NewNop())
	}
	return NewOrchestrator(adapters, cache, Options{}, zap.NewNop()), mr
}

// TestOrchestrator_PublicCallerOnlyDatabase 未认证调用只触发database源
func TestOrchestrator_PublicCallerOnlyDatabase(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase, results: []Result{
		{ID: "issue-1", Title: "Public issue", Content: "body", Score: 0.9},
	}}
	rag := &fakeAdapter{name: SourceRAG, results: []Result{
		{ID: "chunk-1", Title: "Secret doc", Content: "body", Score: 0.9},
	}}
	mcp := &fakeAdapter{name: SourceMCP}

	orch, _ := newTestOrchestrator(t, []SourceAdapter{db, rag, mcp}, false)

	kbID := uint(5)
	results, _, err := orch.Search(context.Background(), Query{
		Text:            "public",
		UseAI:           true, // 未认证时必须被忽略
		KnowledgeBaseID: &kbID,
	}, VisibilityScope{Authenticated: false})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, SourceDatabase, results[0].Source)
	assert.EqualValues(t, 1, atomic.LoadInt32(&db.calls))
	assert.EqualValues(t, 0, atomic.LoadInt32(&rag.calls), "rag不应被调用")
	assert.EqualValues(t, 0, atomic.LoadInt32(&mcp.calls), "mcp不应被调用")
}

// TestOrchestrator_AuthenticatedFanOut 认证且use_ai+kb_id时三源全部参与
func TestOrchestrator_AuthenticatedFanOut(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase, results: []Result{
		{ID: "issue-1", Title: "db hit", Content: "a", Score: 0.9},
	}}
	rag := &fakeAdapter{name: SourceRAG, results: []Result{
		{ID: "chunk-1", Title: "rag hit", Content: "b", Score: 0.8},
	}}
	mcp := &fakeAdapter{name: SourceMCP, results: []Result{
		{ID: "ext-1", Title: "mcp hit", Content: "c", Score: 0.7},
	}}

	orch, _ := newTestOrchestrator(t, []SourceAdapter{db, rag, mcp}, false)

	kbID := uint(3)
	results, stats, err := orch.Search(context.Background(), Query{
		Text:            "hit",
		UseAI:           true,
		KnowledgeBaseID: &kbID,
	}, VisibilityScope{Authenticated: true, UserID: 1, WorkspaceIDs: []uint{1}})

	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, 1, stats.DatabaseCount)
	assert.Equal(t, 1, stats.RAGCount)
	assert.Equal(t, 1, stats.MCPCount)
}

// TestOrchestrator_SingleSourceFailureAbsorbed 单源失败只反映在stats
func TestOrchestrator_SingleSourceFailureAbsorbed(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase, results: []Result{
		{ID: "issue-1", Title: "db hit", Content: "a", Score: 0.9},
	}}
	rag := &fakeAdapter{name: SourceRAG, results: []Result{
		{ID: "chunk-1", Title: "rag hit", Content: "b", Score: 0.8},
	}}
	mcp := &fakeAdapter{name: SourceMCP, err: fmt.Errorf("webhook call failed: %w", context.DeadlineExceeded)}

	orch, _ := newTestOrchestrator(t, []SourceAdapter{db, rag, mcp}, false)

	kbID := uint(3)
	results, stats, err := orch.Search(context.Background(), Query{
		Text:            "hit",
		UseAI:           true,
		KnowledgeBaseID: &kbID,
	}, VisibilityScope{Authenticated: true, UserID: 1})

	require.NoError(t, err, "单源失败不应导致整体失败")
	assert.Len(t, results, 2)
	assert.Equal(t, 0, stats.MCPCount)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, SourceMCP, stats.Failures[0].Source)
}

// TestOrchestrator_AllSourcesFailed 全部失败返回检索错误
func TestOrchestrator_AllSourcesFailed(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase, err: fmt.Errorf("database unreachable")}

	orch, _ := newTestOrchestrator(t, []SourceAdapter{db}, false)

	_, _, err := orch.Search(context.Background(), Query{Text: "q"}, VisibilityScope{})
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	assert.Equal(t, apperrors.ErrCodeSearchFailed, appErr.Code)
	assert.Equal(t, 500, appErr.HTTPCode)
}

// TestOrchestrator_AllSourcesTimedOut 全部超时返回408语义的超时错误
func TestOrchestrator_AllSourcesTimedOut(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase, err: fmt.Errorf("database search failed: %w", context.DeadlineExceeded)}

	orch, _ := newTestOrchestrator(t, []SourceAdapter{db}, false)

	_, _, err := orch.Search(context.Background(), Query{Text: "q"}, VisibilityScope{})
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	assert.Equal(t, apperrors.ErrCodeSearchTimeout, appErr.Code)
	assert.Equal(t, 408, appErr.HTTPCode)
}

// TestOrchestrator_ValidationErrors 参数校验
func TestOrchestrator_ValidationErrors(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase}
	orch, _ := newTestOrchestrator(t, []SourceAdapter{db}, false)

	_, _, err := orch.Search(context.Background(), Query{Text: "   "}, VisibilityScope{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetAppError(err).Code)

	_, _, err = orch.Search(context.Background(), Query{Text: "q", Pattern: "regex"}, VisibilityScope{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetAppError(err).Code)

	assert.EqualValues(t, 0, atomic.LoadInt32(&db.calls), "校验失败不应触发检索")
}

// TestOrchestrator_LimitClamped limit钳制到上限
func TestOrchestrator_LimitClamped(t *testing.T) {
	var many []Result
	for i := 0; i < 150; i++ {
		many = append(many, Result{
			ID:    fmt.Sprintf("issue-%d", i),
			Title: fmt.Sprintf("title %d", i),
			Score: 0.5,
		})
	}
	db := &fakeAdapter{name: SourceDatabase, results: many}

	orch, _ := newTestOrchestrator(t, []SourceAdapter{db}, false)

	results, _, err := orch.Search(context.Background(), Query{Text: "q", Limit: 9999}, VisibilityScope{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 100)
}

// TestOrchestrator_CacheHit 相同查询在TTL内命中缓存
func TestOrchestrator_CacheHit(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase, results: []Result{
		{ID: "issue-1", Title: "cached", Content: "body", Score: 0.9,
			Metadata: map[string]interface{}{"category": "infra"}},
	}}

	orch, _ := newTestOrchestrator(t, []SourceAdapter{db}, true)

	query := Query{Text: "cached"}
	scope := VisibilityScope{Authenticated: false}

	first, firstStats, err := orch.Search(context.Background(), query, scope)
	require.NoError(t, err)
	assert.False(t, firstStats.CacheHit)

	second, secondStats, err := orch.Search(context.Background(), query, scope)
	require.NoError(t, err)
	assert.True(t, secondStats.CacheHit)
	assert.Equal(t, first, second, "缓存命中必须返回相同结果")
	assert.EqualValues(t, 1, atomic.LoadInt32(&db.calls), "命中后不应再触发检索源")
}

// TestOrchestrator_CacheKeyIgnoresSanitizedFields 未认证调用的kb_id等字段不分裂缓存键
func TestOrchestrator_CacheKeyIgnoresSanitizedFields(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase, results: []Result{
		{ID: "issue-1", Title: "x", Content: "y", Score: 0.9},
	}}

	orch, _ := newTestOrchestrator(t, []SourceAdapter{db}, true)

	scope := VisibilityScope{Authenticated: false}
	_, _, err := orch.Search(context.Background(), Query{Text: "q"}, scope)
	require.NoError(t, err)

	kbID := uint(7)
	_, stats, err := orch.Search(context.Background(), Query{Text: "q", UseAI: true, KnowledgeBaseID: &kbID}, scope)
	require.NoError(t, err)
	assert.True(t, stats.CacheHit, "忽略字段不同不应产生新缓存键")
}

// TestOrchestrator_CacheDownDoesNotFail 缓存后端不可用时检索照常
func TestOrchestrator_CacheDownDoesNotFail(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase, results: []Result{
		{ID: "issue-1", Title: "x", Content: "y", Score: 0.9},
	}}

	orch, mr := newTestOrchestrator(t, []SourceAdapter{db}, true)
	mr.Close() // 模拟Redis宕机

	results, _, err := orch.Search(context.Background(), Query{Text: "q"}, VisibilityScope{})
	require.NoError(t, err, "缓存失败必须静默吸收")
	assert.Len(t, results, 1)
}

// TestOrchestrator_MinScoreApplied 所有返回结果不低于min_score
func TestOrchestrator_MinScoreApplied(t *testing.T) {
	db := &fakeAdapter{name: SourceDatabase, results: []Result{
		{ID: "a", Title: "high", Score: 0.9},
		{ID: "b", Title: "low", Score: 0.2},
	}}

	orch, _ := newTestOrchestrator(t, []SourceAdapter{db}, false)

	results, _, err := orch.Search(context.Background(), Query{Text: "q", MinScore: 0.5}, VisibilityScope{})
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.FinalScore, 0.5)
	}
}
