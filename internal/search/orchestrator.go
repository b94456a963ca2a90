package search

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxQueryLength = 500
	maxLimit       = 100
	defaultLimit   = 10
)

// Options Orchestrator构造参数
// 权重和超时显式注入，便于测试时替换
type Options struct {
	Weights        Weights
	RequestTimeout time.Duration
	ExcerptLength  int
}

// Orchestrator 混合检索编排器
// 根据调用方权限决定检索源集合，并发扇出后归一、加权排序，结果写入缓存
type Orchestrator struct {
	adapters       []SourceAdapter
	normalizer     *Normalizer
	ranker         *Ranker
	cache          *ResultCache
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewOrchestrator 创建编排器
// cache可为nil（如测试环境），此时跳过缓存读写
func NewOrchestrator(adapters []SourceAdapter, cache *ResultCache, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Orchestrator{
		adapters:       adapters,
		normalizer:     NewNormalizer(opts.ExcerptLength),
		ranker:         NewRanker(opts.Weights),
		cache:          cache,
		requestTimeout: opts.RequestTimeout,
		logger:         logger,
	}
}

// Search 执行一次混合检索
// 未认证调用只触发database源且忽略workspace_id/kb_id/use_ai；
// 单个源失败记入stats不报错，全部失败才上抛
func (o *Orchestrator) Search(ctx context.Context, query Query, scope VisibilityScope) ([]RankedResult, Stats, error) {
	started := time.Now()

	sanitized, err := o.validate(query, scope)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, Stats{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	cacheKey := CacheKey(sanitized, scope)
	if o.cache != nil {
		if entry := o.cache.Get(ctx, cacheKey); entry != nil {
			stats := entry.Stats
			stats.CacheHit = true
			stats.QueryTimeMS = time.Since(started).Milliseconds()
			metrics.SearchRequestsTotal.WithLabelValues("hit").Inc()
			return entry.Results, stats, nil
		}
	}

	active := o.activeAdapters(sanitized, scope)
	resultsBySource, failures := o.fanOut(ctx, active, sanitized, scope)

	if len(resultsBySource) == 0 && len(failures) > 0 {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		if allTimeouts(failures) {
			return nil, Stats{}, apperrors.NewSearchTimeoutError("all search sources timed out")
		}
		return nil, Stats{}, apperrors.NewSearchError("all search sources failed")
	}

	ranked, stats := o.ranker.Rank(resultsBySource, sanitized.Limit, sanitized.MinScore)
	stats.Failures = toFailureStats(failures)
	stats.QueryTimeMS = time.Since(started).Milliseconds()

	if o.cache != nil {
		o.cache.Put(ctx, cacheKey, CacheEntry{Results: ranked, Stats: stats})
	}

	metrics.SearchRequestsTotal.WithLabelValues("miss").Inc()
	metrics.SearchDuration.Observe(time.Since(started).Seconds())
	return ranked, stats, nil
}

// validate 校验并钳制查询参数，返回净化后的副本
// 未认证调用清空workspace_id/kb_id/use_ai，保证这些字段不参与缓存键
func (o *Orchestrator) validate(query Query, scope VisibilityScope) (Query, error) {
	query.Text = strings.TrimSpace(query.Text)
	if query.Text == "" {
		return query, apperrors.NewValidationError("query must not be empty")
	}
	if len([]rune(query.Text)) > maxQueryLength {
		return query, apperrors.NewValidationError("query exceeds maximum length")
	}

	switch query.Pattern {
	case PatternMatch, PatternPhrase, PatternFuzzy:
	case "":
		query.Pattern = PatternMatch
	default:
		return query, apperrors.NewValidationError("pattern must be one of match, phrase, fuzzy")
	}

	if query.Limit <= 0 {
		query.Limit = defaultLimit
	}
	if query.Limit > maxLimit {
		query.Limit = maxLimit
	}
	if query.MinScore < 0 {
		query.MinScore = 0
	}
	if query.MinScore > 1 {
		query.MinScore = 1
	}

	if !scope.Authenticated {
		query.WorkspaceID = nil
		query.KnowledgeBaseID = nil
		query.UseAI = false
	}
	return query, nil
}

// activeAdapters 根据请求确定本次参与的检索源
// database始终参与；rag需use_ai+kb_id；mcp需use_ai
func (o *Orchestrator) activeAdapters(query Query, scope VisibilityScope) []SourceAdapter {
	var active []SourceAdapter
	for _, adapter := range o.adapters {
		switch adapter.Name() {
		case SourceDatabase:
			active = append(active, adapter)
		case SourceRAG:
			if scope.Authenticated && query.UseAI && query.KnowledgeBaseID != nil {
				active = append(active, adapter)
			}
		case SourceMCP:
			if scope.Authenticated && query.UseAI {
				active = append(active, adapter)
			}
		}
	}
	return active
}

type sourceFailure struct {
	source Source
	err    error
}

// fanOut 并发调用各检索源，逐源收集结果或失败
// 各goroutine写各自下标，无共享可变状态；错误不传入errgroup，保证全部源跑完
func (o *Orchestrator) fanOut(ctx context.Context, adapters []SourceAdapter, query Query, scope VisibilityScope) (map[Source][]Result, []sourceFailure) {
	type outcome struct {
		source  Source
		results []Result
		err     error
	}

	outcomes := make([]outcome, len(adapters))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, adapter := range adapters {
		group.Go(func() error {
			results, err := adapter.Fetch(groupCtx, query, scope)
			outcomes[i] = outcome{source: adapter.Name(), results: results, err: err}
			return nil
		})
	}
	_ = group.Wait()

	resultsBySource := make(map[Source][]Result)
	var failures []sourceFailure
	for _, out := range outcomes {
		if out.err != nil {
			o.logger.Warn("search source failed",
				zap.String("source", string(out.source)),
				zap.Error(out.err))
			metrics.SearchSourceFailures.WithLabelValues(string(out.source)).Inc()
			failures = append(failures, sourceFailure{source: out.source, err: out.err})
			continue
		}
		resultsBySource[out.source] = o.normalizer.NormalizeAll(out.source, out.results)
	}
	return resultsBySource, failures
}

func allTimeouts(failures []sourceFailure) bool {
	for _, f := range failures {
		if !errors.Is(f.err, context.DeadlineExceeded) {
			return false
		}
	}
	return len(failures) > 0
}

func toFailureStats(failures []sourceFailure) []SourceFailure {
	if len(failures) == 0 {
		return nil
	}
	out := make([]SourceFailure, 0, len(failures))
	for _, f := range failures {
		out = append(out, SourceFailure{Source: f.source, Reason: f.err.Error()})
	}
	return out
}
