package knowledge

import "context"

// VectorChunk 存储向量信息
type VectorChunk struct {
	ChunkID         uint
	DocumentID      uint
	KnowledgeBaseID uint
	Title           string
	Text            string
	Embedding       []float32
}

// VectorSearchRequest 向量检索请求
type VectorSearchRequest struct {
	KnowledgeBaseID uint
	QueryEmbedding  []float32
	Limit           int
	Threshold       float64 // 相似度阈值，仅返回 >= Threshold 的结果
}

// SearchMatch 向量/全文检索的命中结果
type SearchMatch struct {
	ChunkID    uint
	DocumentID uint
	Title      string
	Content    string
	Score      float64
	Highlight  string
	Metadata   map[string]interface{}
}

// VectorStore 向量存储抽象
type VectorStore interface {
	UpsertChunk(ctx context.Context, chunk VectorChunk) (string, error)
	DeleteDocument(ctx context.Context, knowledgeBaseID uint, documentID uint) error
	Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error)
	Ready() bool
}

// NoopVectorStore 未配置向量库时的占位实现
type NoopVectorStore struct{}

func (n *NoopVectorStore) UpsertChunk(ctx context.Context, chunk VectorChunk) (string, error) {
	return "", nil
}

func (n *NoopVectorStore) DeleteDocument(ctx context.Context, knowledgeBaseID uint, documentID uint) error {
	return nil
}

func (n *NoopVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	return nil, nil
}

func (n *NoopVectorStore) Ready() bool {
	return false
}
