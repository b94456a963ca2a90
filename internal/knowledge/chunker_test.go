package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerSplitShortText(t *testing.T) {
	c := NewChunker(100, 20)

	chunks := c.Split("hello world")
	require.Len(t, chunks, 1, "短文本应只产出一个chunk")
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "hello world", chunks[0].Text)
}

func TestChunkerSplitEmpty(t *testing.T) {
	c := NewChunker(100, 20)

	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestChunkerSplitOverlap(t *testing.T) {
	c := NewChunker(10, 4)

	text := "abcdefghijklmnopqrst" // 20 runes
	chunks := c.Split(text)
	require.True(t, len(chunks) >= 2)

	// 步长 = 10 - 4 = 6，第二个chunk从第7个字符开始
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "ghijklmnop", chunks[1].Text)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestChunkerSplitCollapsesWhitespace(t *testing.T) {
	c := NewChunker(100, 0)

	chunks := c.Split("line one\n\n\nline   two\t\tend")
	require.Len(t, chunks, 1)
	assert.Equal(t, "line one line two end", chunks[0].Text)
}

func TestChunkerSplitCJK(t *testing.T) {
	c := NewChunker(5, 0)

	chunks := c.Split("一二三四五六七八")
	require.Len(t, chunks, 2)
	assert.Equal(t, "一二三四五", chunks[0].Text)
	assert.Equal(t, "六七八", chunks[1].Text)
}

func TestChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)

	// 非法参数回落到默认值，不应panic且覆盖全文
	text := strings.Repeat("x", 2000)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 800, len([]rune(chunks[0].Text)))
}
