package search

import "context"

// SourceAdapter 检索源适配器
// Fetch返回源内原始打分的结果，超时控制在适配器内部完成，
// 超时上限应短于Orchestrator的整体请求超时
type SourceAdapter interface {
	Name() Source
	Fetch(ctx context.Context, query Query, scope VisibilityScope) ([]Result, error)
}
