package search

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Source 检索源类型
type Source string

const (
	SourceDatabase Source = "database"
	SourceRAG      Source = "rag"
	SourceMCP      Source = "mcp_n8n"
)

// Pattern 匹配模式
type Pattern string

const (
	PatternMatch  Pattern = "match"  // 分词后所有词都命中（AND语义）
	PatternPhrase Pattern = "phrase" // 完整短语字面匹配
	PatternFuzzy  Pattern = "fuzzy"  // 任一词命中即可，按命中比例给分
)

// Filters 结构化过滤条件
type Filters struct {
	Categories []string   `json:"categories,omitempty"`
	Statuses   []string   `json:"statuses,omitempty"`
	AuthorID   *uint      `json:"author_id,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
}

// Query 检索请求
// 构造后不再修改；kb_id在use_ai为false时容忍但不生效
type Query struct {
	Text            string  `json:"query"`
	Pattern         Pattern `json:"pattern"`
	Limit           int     `json:"limit"`
	MinScore        float64 `json:"min_score"`
	Filters         Filters `json:"filters"`
	WorkspaceID     *uint   `json:"workspace_id,omitempty"`
	KnowledgeBaseID *uint   `json:"kb_id,omitempty"`
	UseAI           bool    `json:"use_ai"`
}

// VisibilityScope 调用方可见范围
// 未认证调用只能看public记录；认证调用附带其所属工作区集合
type VisibilityScope struct {
	Authenticated bool
	UserID        uint
	WorkspaceIDs  []uint
}

// scopeKey 可见范围的缓存键片段（工作区ID排序保证确定性）
// private记录按author_id过滤，键中必须带上UserID
func (s VisibilityScope) scopeKey() string {
	if !s.Authenticated {
		return "public"
	}
	ids := make([]uint, len(s.WorkspaceIDs))
	copy(ids, s.WorkspaceIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return "auth:" + strconv.FormatUint(uint64(s.UserID), 10) + ":" + strings.Join(parts, ",")
}

// Result 归一化后的单条检索结果
type Result struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Source   Source                 `json:"source"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RankedResult 加权后的最终结果
type RankedResult struct {
	Result
	FinalScore float64 `json:"final_score"`
}

// SourceFailure 单个检索源的失败记录
type SourceFailure struct {
	Source Source `json:"source"`
	Reason string `json:"reason"`
}

// Stats 检索统计
// Total为去重后截断前的数量；各源计数为去重后存活的贡献数
type Stats struct {
	Total         int             `json:"total"`
	DatabaseCount int             `json:"database_count"`
	RAGCount      int             `json:"rag_count"`
	MCPCount      int             `json:"mcp_n8n_count"`
	Failures      []SourceFailure `json:"failures,omitempty"`
	QueryTimeMS   int64           `json:"query_time_ms"`
	CacheHit      bool            `json:"cache_hit"`
}

// Weights 源优先级权重（信任排序：database > rag > mcp）
type Weights struct {
	Database float64
	RAG      float64
	MCP      float64
}

// DefaultWeights 默认权重
func DefaultWeights() Weights {
	return Weights{
		Database: 1.0,
		RAG:      0.8,
		MCP:      0.6,
	}
}

// Weight 获取指定源的权重
func (w Weights) Weight(source Source) float64 {
	switch source {
	case SourceDatabase:
		return w.Database
	case SourceRAG:
		return w.RAG
	case SourceMCP:
		return w.MCP
	default:
		return 0
	}
}
