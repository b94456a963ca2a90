package search

import (
	"context"
	"fmt"
	"time"

	"github.com/trackhub/backend-go/internal/knowledge"
	"github.com/trackhub/backend-go/internal/logger"
	"github.com/trackhub/backend-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RAGSource 向量检索源
// 对查询文本做embedding后检索kb_id对应的向量索引；
// 向量链路不可用时降级走全文索引；
// 知识库不存在、不可访问或为空时返回空列表而非错误
type RAGSource struct {
	db          *gorm.DB
	embedder    knowledge.Embedder
	vectorStore knowledge.VectorStore
	indexer     knowledge.FulltextIndexer
	timeout     time.Duration
}

// NewRAGSource 创建向量检索源
func NewRAGSource(db *gorm.DB, embedder knowledge.Embedder, vectorStore knowledge.VectorStore, indexer knowledge.FulltextIndexer, timeout time.Duration) *RAGSource {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RAGSource{
		db:          db,
		embedder:    embedder,
		vectorStore: vectorStore,
		indexer:     indexer,
		timeout:     timeout,
	}
}

func (s *RAGSource) Name() Source {
	return SourceRAG
}

func (s *RAGSource) Fetch(ctx context.Context, query Query, scope VisibilityScope) ([]Result, error) {
	if query.KnowledgeBaseID == nil {
		return []Result{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	kb, accessible := s.resolveKnowledgeBase(ctx, *query.KnowledgeBaseID, scope)
	if !accessible {
		logger.Warn("rag search skipped: knowledge base not accessible",
			zap.Uint("kb_id", *query.KnowledgeBaseID),
			zap.Uint("user_id", scope.UserID))
		return []Result{}, nil
	}
	if kb.DocumentCount == 0 {
		return []Result{}, nil
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}

	matches, err := s.retrieve(ctx, kb, query.Text, limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, match := range matches {
		title := match.Title
		if title == "" {
			title = fmt.Sprintf("Document %d", match.DocumentID)
		}
		results = append(results, Result{
			ID:      fmt.Sprintf("chunk-%d", match.ChunkID),
			Title:   title,
			Content: match.Content,
			Source:  SourceRAG,
			Score:   match.Score,
			Metadata: map[string]interface{}{
				"document_id": match.DocumentID,
				"kb_id":       kb.KnowledgeBaseID,
			},
		})
	}
	return results, nil
}

// retrieve 优先走向量检索，向量链路未配置时降级为全文检索
func (s *RAGSource) retrieve(ctx context.Context, kb *models.KnowledgeBase, text string, limit int) ([]knowledge.SearchMatch, error) {
	if s.embedder != nil && s.embedder.Ready() && s.vectorStore != nil && s.vectorStore.Ready() {
		embedding, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed query failed: %w", err)
		}
		matches, err := s.vectorStore.Search(ctx, knowledge.VectorSearchRequest{
			KnowledgeBaseID: kb.KnowledgeBaseID,
			QueryEmbedding:  embedding,
			Limit:           limit,
		})
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
		return matches, nil
	}

	if s.indexer != nil && s.indexer.Ready() {
		matches, err := s.indexer.Search(ctx, knowledge.FulltextSearchRequest{
			KnowledgeBaseID: kb.KnowledgeBaseID,
			Query:           text,
			Limit:           limit,
		})
		if err != nil {
			return nil, fmt.Errorf("fulltext search failed: %w", err)
		}
		return matches, nil
	}

	return nil, nil
}

// resolveKnowledgeBase 校验知识库存在且属于调用方可见的工作区
func (s *RAGSource) resolveKnowledgeBase(ctx context.Context, kbID uint, scope VisibilityScope) (*models.KnowledgeBase, bool) {
	var kb models.KnowledgeBase
	if err := s.db.WithContext(ctx).First(&kb, "knowledge_base_id = ?", kbID).Error; err != nil {
		return nil, false
	}
	for _, wsID := range scope.WorkspaceIDs {
		if wsID == kb.WorkspaceID {
			return &kb, true
		}
	}
	return nil, false
}
