package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trackhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

// MCPSource 外部工作流检索源
// 调用n8n webhook做智能检索；上游响应形状不稳定，
// 按已知变体逐一尝试解析，全部失败时视为零结果并告警，不中断整体检索
type MCPSource struct {
	webhookURL string
	authToken  string
	httpClient *http.Client
	timeout    time.Duration
}

// NewMCPSource 创建外部工作流检索源
func NewMCPSource(webhookURL, authToken string, timeout time.Duration) *MCPSource {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MCPSource{
		webhookURL: webhookURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

func (s *MCPSource) Name() Source {
	return SourceMCP
}

// mcpRequest webhook请求体
type mcpRequest struct {
	Query   string  `json:"query"`
	Pattern string  `json:"pattern"`
	Limit   int     `json:"limit"`
	Filters Filters `json:"filters"`
	UserID  uint    `json:"user_id,omitempty"`
}

// mcpItem webhook返回的单条结果（字段缺失容忍）
type mcpItem struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Name    string   `json:"name"` // 部分工作流用name代替title
	Content string   `json:"content"`
	Text    string   `json:"text"` // 部分工作流用text代替content
	Score   *float64 `json:"score"`

	Metadata map[string]interface{} `json:"metadata"`
}

func (s *MCPSource) Fetch(ctx context.Context, query Query, scope VisibilityScope) ([]Result, error) {
	if s.webhookURL == "" {
		return []Result{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(mcpRequest{
		Query:   query.Text,
		Pattern: string(query.Pattern),
		Limit:   query.Limit,
		Filters: query.Filters,
		UserID:  scope.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create webhook request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read webhook response failed: %w", err)
	}

	items, ok := decodeWebhookPayload(body)
	if !ok {
		// 解析失败按零结果处理，不影响其他检索源
		logger.Warn("mcp webhook returned unparseable payload",
			zap.String("url", s.webhookURL),
			zap.Int("body_size", len(body)))
		return []Result{}, nil
	}

	results := make([]Result, 0, len(items))
	for i, item := range items {
		results = append(results, normalizeMCPItem(item, i))
	}
	return results, nil
}

// decodeWebhookPayload 按已知变体解析响应：
// {"results": [...]} / {"data": {"results": [...]}} / 裸数组
func decodeWebhookPayload(body []byte) ([]mcpItem, bool) {
	var wrapped struct {
		Results []mcpItem `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Results != nil {
		return wrapped.Results, true
	}

	var nested struct {
		Data struct {
			Results []mcpItem `json:"results"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Data.Results != nil {
		return nested.Data.Results, true
	}

	var bare []mcpItem
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, true
	}

	return nil, false
}

// normalizeMCPItem 补齐缺失字段：无ID按序号合成，无分数给保守默认值
func normalizeMCPItem(item mcpItem, index int) Result {
	id := item.ID
	if id == "" {
		id = fmt.Sprintf("mcp-%d", index)
	}

	title := item.Title
	if title == "" {
		title = item.Name
	}

	content := item.Content
	if content == "" {
		content = item.Text
	}

	score := 0.5
	if item.Score != nil {
		score = *item.Score
	}

	metadata := item.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return Result{
		ID:       id,
		Title:    title,
		Content:  content,
		Source:   SourceMCP,
		Score:    score,
		Metadata: metadata,
	}
}
