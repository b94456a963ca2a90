package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizer_ClampScore 测试越界分数钳制
func TestNormalizer_ClampScore(t *testing.T) {
	n := NewNormalizer(300)

	out := n.Normalize(SourceRAG, Result{ID: "a", Title: "t", Content: "c", Score: 1.7})
	assert.Equal(t, 1.0, out.Score)

	out = n.Normalize(SourceRAG, Result{ID: "b", Title: "t", Content: "c", Score: -0.2})
	assert.Equal(t, 0.0, out.Score)
}

// TestNormalizer_SetsSourceAndDefaults 测试来源标记与元数据缺省补齐
func TestNormalizer_SetsSourceAndDefaults(t *testing.T) {
	n := NewNormalizer(300)

	out := n.Normalize(SourceMCP, Result{ID: "x", Title: "  padded  ", Content: "body", Score: 0.5})
	assert.Equal(t, SourceMCP, out.Source)
	assert.Equal(t, "padded", out.Title)
	assert.NotNil(t, out.Metadata)
}

// TestNormalizer_ExcerptTruncation 测试摘要截断不切断单词
func TestNormalizer_ExcerptTruncation(t *testing.T) {
	n := NewNormalizer(20)

	out := n.Normalize(SourceDatabase, Result{
		ID:      "i",
		Title:   "t",
		Content: "the quick brown fox jumps over the lazy dog",
		Score:   0.5,
	})

	assert.LessOrEqual(t, len([]rune(out.Content)), 20)
	// 截断点必须落在词边界
	assert.False(t, strings.HasSuffix(out.Content, "ju"), "不应切断单词")
	assert.Equal(t, "the quick brown fox", out.Content)
}

// TestTruncateAtWordBoundary 词边界截断的边界情形
func TestTruncateAtWordBoundary(t *testing.T) {
	// 不超长原样返回
	assert.Equal(t, "short", TruncateAtWordBoundary("short", 10))

	// 整段无空白只能硬截断
	long := strings.Repeat("x", 50)
	assert.Equal(t, strings.Repeat("x", 10), TruncateAtWordBoundary(long, 10))

	// CJK文本同样按rune硬截断
	cjk := strings.Repeat("数", 50)
	assert.Equal(t, strings.Repeat("数", 10), TruncateAtWordBoundary(cjk, 10))
}

// TestNormalizeTitle 标题归一化用于跨源合并
func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "deploy guide", normalizeTitle("Deploy   Guide"))
	assert.Equal(t, "deploy guide", normalizeTitle("  deploy\tguide  "))
	assert.Equal(t, "", normalizeTitle("   "))
}
