package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRanker_WeightedOrdering 测试加权排序：数据库结果在同等原始分下优先
func TestRanker_WeightedOrdering(t *testing.T) {
	ranker := NewRanker(DefaultWeights())

	results := map[Source][]Result{
		SourceDatabase: {
			{ID: "issue-1", Title: "Connection timeout", Score: 0.8, Source: SourceDatabase},
		},
		SourceRAG: {
			{ID: "chunk-5", Title: "Network guide", Score: 0.9, Source: SourceRAG},
		},
		SourceMCP: {
			{ID: "ext-3", Title: "External hit", Score: 0.9, Source: SourceMCP},
		},
	}

	ranked, stats := ranker.Rank(results, 10, 0)
	require.Len(t, ranked, 3)

	// database 0.8*1.0=0.80, rag 0.9*0.8=0.72, mcp 0.9*0.6=0.54
	assert.Equal(t, "issue-1", ranked[0].ID)
	assert.Equal(t, "chunk-5", ranked[1].ID)
	assert.Equal(t, "ext-3", ranked[2].ID)
	assert.InDelta(t, 0.80, ranked[0].FinalScore, 1e-9)
	assert.InDelta(t, 0.72, ranked[1].FinalScore, 1e-9)
	assert.InDelta(t, 0.54, ranked[2].FinalScore, 1e-9)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.DatabaseCount)
	assert.Equal(t, 1, stats.RAGCount)
	assert.Equal(t, 1, stats.MCPCount)
}

// TestRanker_DedupByID 测试按ID去重：数据库0.9打败RAG原始分更高的0.95
func TestRanker_DedupByID(t *testing.T) {
	ranker := NewRanker(DefaultWeights())

	results := map[Source][]Result{
		SourceDatabase: {
			{ID: "X", Title: "Same item", Score: 0.9, Source: SourceDatabase},
		},
		SourceRAG: {
			{ID: "X", Title: "Same item", Score: 0.95, Source: SourceRAG},
		},
	}

	ranked, stats := ranker.Rank(results, 10, 0)
	require.Len(t, ranked, 1)

	// database 0.9*1.0=0.90 > rag 0.95*0.8=0.76
	assert.Equal(t, SourceDatabase, ranked[0].Source)
	assert.InDelta(t, 0.90, ranked[0].FinalScore, 1e-9)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.DatabaseCount)
	assert.Equal(t, 0, stats.RAGCount)
}

// TestRanker_DedupByTitleAcrossSources 测试跨源标题折叠
func TestRanker_DedupByTitleAcrossSources(t *testing.T) {
	ranker := NewRanker(DefaultWeights())

	results := map[Source][]Result{
		SourceDatabase: {
			{ID: "issue-7", Title: "Deploy Guide", Score: 0.6, Source: SourceDatabase},
		},
		SourceMCP: {
			{ID: "ext-42", Title: "deploy   guide", Score: 0.9, Source: SourceMCP},
		},
	}

	ranked, _ := ranker.Rank(results, 10, 0)
	require.Len(t, ranked, 1)

	// database 0.6*1.0=0.60 > mcp 0.9*0.6=0.54，标题归一化后视为同一条目
	assert.Equal(t, "issue-7", ranked[0].ID)
	assert.Equal(t, SourceDatabase, ranked[0].Source)
}

// TestRanker_TitleCollapseTiePrefersHeavierSource 标题折叠平分时按源权重取胜者
func TestRanker_TitleCollapseTiePrefersHeavierSource(t *testing.T) {
	ranker := NewRanker(DefaultWeights())

	// database 0.4*1.0=0.40 与 rag 0.5*0.8=0.40 平分
	// rag的ID字典序更小，但源权重低，存活者应为database条目
	results := map[Source][]Result{
		SourceDatabase: {
			{ID: "issue-9", Title: "Release Notes", Score: 0.4, Source: SourceDatabase},
		},
		SourceRAG: {
			{ID: "chunk-1", Title: "release notes", Score: 0.5, Source: SourceRAG},
		},
	}

	ranked, _ := ranker.Rank(results, 10, 0)
	require.Len(t, ranked, 1)
	assert.Equal(t, "issue-9", ranked[0].ID)
	assert.Equal(t, SourceDatabase, ranked[0].Source)
}

// TestRanker_SameSourceSameTitleKeptDistinct 同源同标题不折叠
func TestRanker_SameSourceSameTitleKeptDistinct(t *testing.T) {
	ranker := NewRanker(DefaultWeights())

	results := map[Source][]Result{
		SourceDatabase: {
			{ID: "issue-1", Title: "Weekly report", Score: 0.8, Source: SourceDatabase},
			{ID: "issue-2", Title: "Weekly report", Score: 0.5, Source: SourceDatabase},
		},
	}

	ranked, _ := ranker.Rank(results, 10, 0)
	assert.Len(t, ranked, 2)
}

// TestRanker_MinScoreFilter 测试阈值过滤
func TestRanker_MinScoreFilter(t *testing.T) {
	ranker := NewRanker(DefaultWeights())

	results := map[Source][]Result{
		SourceRAG: {
			{ID: "a", Title: "A", Score: 0.9, Source: SourceRAG}, // 0.72
			{ID: "b", Title: "B", Score: 0.5, Source: SourceRAG}, // 0.40
		},
	}

	ranked, stats := ranker.Rank(results, 10, 0.5)
	require.Len(t, ranked, 1)
	assert.Equal(t, "a", ranked[0].ID)
	assert.Equal(t, 1, stats.Total)
}

// TestRanker_TruncateAfterStats 测试统计基于截断前集合
func TestRanker_TruncateAfterStats(t *testing.T) {
	ranker := NewRanker(DefaultWeights())

	results := map[Source][]Result{
		SourceDatabase: {
			{ID: "1", Title: "a", Score: 0.9, Source: SourceDatabase},
			{ID: "2", Title: "b", Score: 0.8, Source: SourceDatabase},
			{ID: "3", Title: "c", Score: 0.7, Source: SourceDatabase},
		},
	}

	ranked, stats := ranker.Rank(results, 2, 0)
	assert.Len(t, ranked, 2)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.DatabaseCount)
}

// TestRanker_MonotonicScores 测试结果按加权得分单调不增
func TestRanker_MonotonicScores(t *testing.T) {
	ranker := NewRanker(DefaultWeights())

	results := map[Source][]Result{
		SourceDatabase: {
			{ID: "1", Title: "x", Score: 0.3, Source: SourceDatabase},
			{ID: "2", Title: "y", Score: 0.9, Source: SourceDatabase},
		},
		SourceRAG: {
			{ID: "3", Title: "z", Score: 0.7, Source: SourceRAG},
			{ID: "4", Title: "w", Score: 1.0, Source: SourceRAG},
		},
		SourceMCP: {
			{ID: "5", Title: "v", Score: 0.95, Source: SourceMCP},
		},
	}

	ranked, _ := ranker.Rank(results, 10, 0)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].FinalScore, ranked[i].FinalScore,
			"加权得分必须单调不增")
	}
}

// TestRanker_TieBreakDeterministic 同分时按源权重、标题定序
func TestRanker_TieBreakDeterministic(t *testing.T) {
	ranker := NewRanker(DefaultWeights())

	// database 0.4*1.0 = rag 0.5*0.8 = 0.40
	results := map[Source][]Result{
		SourceDatabase: {
			{ID: "db-1", Title: "zzz", Score: 0.4, Source: SourceDatabase},
		},
		SourceRAG: {
			{ID: "rag-1", Title: "aaa", Score: 0.5, Source: SourceRAG},
		},
	}

	ranked, _ := ranker.Rank(results, 10, 0)
	require.Len(t, ranked, 2)
	// 同分时源权重高者在前，即便标题字典序靠后
	assert.Equal(t, "db-1", ranked[0].ID)
	assert.Equal(t, "rag-1", ranked[1].ID)
}

// TestRanker_EmptyInput 空输入返回空结果
func TestRanker_EmptyInput(t *testing.T) {
	ranker := NewRanker(DefaultWeights())
	ranked, stats := ranker.Rank(map[Source][]Result{}, 10, 0)
	assert.Empty(t, ranked)
	assert.Equal(t, 0, stats.Total)
}
