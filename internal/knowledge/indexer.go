package knowledge

import (
	"context"
	"time"
)

// FulltextChunk 提供索引用的分块结构
type FulltextChunk struct {
	ChunkID         uint
	DocumentID      uint
	KnowledgeBaseID uint
	Title           string
	Content         string
	ChunkIndex      int
	FileName        string
	FileType        string
	Metadata        map[string]interface{}
	CreatedAt       time.Time
}

// FulltextSearchRequest 全文搜索请求
type FulltextSearchRequest struct {
	KnowledgeBaseID uint
	Query           string
	Limit           int
	Filters         map[string]interface{}
}

// FulltextIndexer 全文索引接口
type FulltextIndexer interface {
	IndexChunk(ctx context.Context, chunk FulltextChunk) error
	RemoveDocument(ctx context.Context, knowledgeBaseID uint, documentID uint) error
	Search(ctx context.Context, req FulltextSearchRequest) ([]SearchMatch, error)
	Ready() bool
}

// NoopFulltextIndexer 未配置Elasticsearch时的空实现
type NoopFulltextIndexer struct{}

func (n *NoopFulltextIndexer) IndexChunk(ctx context.Context, chunk FulltextChunk) error {
	return nil
}

func (n *NoopFulltextIndexer) RemoveDocument(ctx context.Context, knowledgeBaseID uint, documentID uint) error {
	return nil
}

func (n *NoopFulltextIndexer) Search(ctx context.Context, req FulltextSearchRequest) ([]SearchMatch, error) {
	return []SearchMatch{}, nil
}

func (n *NoopFulltextIndexer) Ready() bool {
	return false
}
