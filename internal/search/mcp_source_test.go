package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMCPSource_WrappedPayload 解析{"results": [...]}形状
func TestMCPSource_WrappedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req mcpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deploy", req.Query)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{"id": "wf-1", "title": "Deploy runbook", "content": "steps", "score": 0.8}]}`))
	}))
	defer server.Close()

	source := NewMCPSource(server.URL, "secret", 2*time.Second)
	results, err := source.Fetch(context.Background(), Query{Text: "deploy", Pattern: PatternMatch, Limit: 10}, VisibilityScope{Authenticated: true, UserID: 7})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "wf-1", results[0].ID)
	assert.Equal(t, "Deploy runbook", results[0].Title)
	assert.Equal(t, 0.8, results[0].Score)
	assert.Equal(t, SourceMCP, results[0].Source)
}

// TestMCPSource_BareArrayPayload 解析裸数组形状
func TestMCPSource_BareArrayPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "a", "name": "Alt title", "text": "alt content"}]`))
	}))
	defer server.Close()

	source := NewMCPSource(server.URL, "", 2*time.Second)
	results, err := source.Fetch(context.Background(), Query{Text: "q"}, VisibilityScope{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	// name/text字段变体和缺失分数的缺省值
	assert.Equal(t, "Alt title", results[0].Title)
	assert.Equal(t, "alt content", results[0].Content)
	assert.Equal(t, 0.5, results[0].Score)
}

// TestMCPSource_NestedPayload 解析{"data": {"results": [...]}}形状
func TestMCPSource_NestedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"results": [{"id": "n-1", "title": "nested", "content": "c", "score": 0.6}]}}`))
	}))
	defer server.Close()

	source := NewMCPSource(server.URL, "", 2*time.Second)
	results, err := source.Fetch(context.Background(), Query{Text: "q"}, VisibilityScope{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "n-1", results[0].ID)
}

// TestMCPSource_UnparseablePayload 无法解析时返回零结果而非错误
func TestMCPSource_UnparseablePayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	source := NewMCPSource(server.URL, "", 2*time.Second)
	results, err := source.Fetch(context.Background(), Query{Text: "q"}, VisibilityScope{})

	require.NoError(t, err, "不可解析的响应不应作为错误上抛")
	assert.Empty(t, results)
}

// TestMCPSource_MissingIDsSynthesized 缺失ID按序号合成
func TestMCPSource_MissingIDsSynthesized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{"title": "one"}, {"title": "two"}]}`))
	}))
	defer server.Close()

	source := NewMCPSource(server.URL, "", 2*time.Second)
	results, err := source.Fetch(context.Background(), Query{Text: "q"}, VisibilityScope{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "mcp-0", results[0].ID)
	assert.Equal(t, "mcp-1", results[1].ID)
}

// TestMCPSource_ServerError 非200响应作为源错误上抛（由编排层吸收）
func TestMCPSource_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewMCPSource(server.URL, "", 2*time.Second)
	_, err := source.Fetch(context.Background(), Query{Text: "q"}, VisibilityScope{})
	assert.Error(t, err)
}

// TestMCPSource_Timeout 上游挂起时按超时失败
func TestMCPSource_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	source := NewMCPSource(server.URL, "", 50*time.Millisecond)
	_, err := source.Fetch(context.Background(), Query{Text: "q"}, VisibilityScope{})
	assert.Error(t, err)
}

// TestMCPSource_NoURLConfigured 未配置webhook时直接返回空
func TestMCPSource_NoURLConfigured(t *testing.T) {
	source := NewMCPSource("", "", 2*time.Second)
	results, err := source.Fetch(context.Background(), Query{Text: "q"}, VisibilityScope{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
