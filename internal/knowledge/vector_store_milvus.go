package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/trackhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address          string
	Username         string
	Password         string
	CollectionPrefix string
	VectorSize       int
	Distance         string
	Database         string
	UseTLS           bool
	Timeout          time.Duration
}

type milvusVectorStore struct {
	milvusClient     client.Client
	collectionPrefix string
	vectorSize       int
	distance         string
	database         string
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		return &NoopVectorStore{}, nil
	}
	if opts.CollectionPrefix == "" {
		opts.CollectionPrefix = "kb_vectors"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Distance == "" {
		opts.Distance = "COSINE"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	milvusClient, err := client.NewClient(
		context.Background(),
		client.Config{
			Address:       opts.Address,
			DBName:        opts.Database,
			Username:      opts.Username,
			Password:      opts.Password,
			EnableTLSAuth: opts.UseTLS,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient:     milvusClient,
		collectionPrefix: opts.CollectionPrefix,
		vectorSize:       opts.VectorSize,
		distance:         formatMilvusDistance(opts.Distance),
		database:         opts.Database,
	}, nil
}

func formatMilvusDistance(value string) string {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return "IP"
	case "L2", "EUCLIDEAN":
		return "L2"
	default:
		return "COSINE"
	}
}

func (s *milvusVectorStore) collectionName(kbID uint) string {
	return fmt.Sprintf("%s_%d", s.collectionPrefix, kbID)
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context, kbID uint) error {
	name := s.collectionName(kbID)

	hasCollection, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if hasCollection {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    fmt.Sprintf("Knowledge base %d document vectors", kbID),
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     "chunk_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "knowledge_base_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorSize),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// 创建索引 - 根据距离类型选择索引，HNSW失败降级IVF_FLAT
	var index entity.Index
	var indexErr error
	switch s.distance {
	case "COSINE":
		index, indexErr = entity.NewIndexHNSW(entity.COSINE, 8, 64)
	case "IP":
		index, indexErr = entity.NewIndexHNSW(entity.IP, 8, 64)
	default:
		index, indexErr = entity.NewIndexHNSW(entity.L2, 8, 64)
	}
	if indexErr != nil {
		switch s.distance {
		case "COSINE":
			index, indexErr = entity.NewIndexIvfFlat(entity.COSINE, 128)
		case "IP":
			index, indexErr = entity.NewIndexIvfFlat(entity.IP, 128)
		default:
			index, indexErr = entity.NewIndexIvfFlat(entity.L2, 128)
		}
		if indexErr != nil {
			return fmt.Errorf("failed to create index: %w", indexErr)
		}
	}

	if err := s.milvusClient.CreateIndex(ctx, name, "vector", index, false); err != nil {
		// 索引创建失败不影响使用，只记录警告
		logger.Warn("failed to create milvus index", zap.String("collection", name), zap.Error(err))
	}

	return nil
}

func (s *milvusVectorStore) UpsertChunk(ctx context.Context, chunk VectorChunk) (string, error) {
	if len(chunk.Embedding) == 0 {
		return "", fmt.Errorf("embedding is empty")
	}
	if len(chunk.Embedding) != s.vectorSize {
		// 向量维度不足时用0填充，超出时截断
		embedding := make([]float32, s.vectorSize)
		copy(embedding, chunk.Embedding)
		chunk.Embedding = embedding
	}

	if err := s.ensureCollection(ctx, chunk.KnowledgeBaseID); err != nil {
		return "", err
	}

	collectionName := s.collectionName(chunk.KnowledgeBaseID)

	idColumn := entity.NewColumnInt64("id", []int64{int64(chunk.ChunkID)})
	chunkIDColumn := entity.NewColumnInt64("chunk_id", []int64{int64(chunk.ChunkID)})
	documentIDColumn := entity.NewColumnInt64("document_id", []int64{int64(chunk.DocumentID)})
	knowledgeBaseIDColumn := entity.NewColumnInt64("knowledge_base_id", []int64{int64(chunk.KnowledgeBaseID)})
	titleColumn := entity.NewColumnVarChar("title", []string{chunk.Title})
	contentColumn := entity.NewColumnVarChar("content", []string{chunk.Text})
	vectorColumn := entity.NewColumnFloatVector("vector", s.vectorSize, [][]float32{chunk.Embedding})

	_, err := s.milvusClient.Insert(ctx, collectionName, "", idColumn, chunkIDColumn, documentIDColumn, knowledgeBaseIDColumn, titleColumn, contentColumn, vectorColumn)
	if err != nil {
		return "", fmt.Errorf("milvus insert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, collectionName, false); err != nil {
		logger.Warn("failed to flush milvus collection", zap.String("collection", collectionName), zap.Error(err))
	}

	return fmt.Sprintf("milvus_%d", chunk.ChunkID), nil
}

func (s *milvusVectorStore) DeleteDocument(ctx context.Context, knowledgeBaseID uint, documentID uint) error {
	if err := s.ensureCollection(ctx, knowledgeBaseID); err != nil {
		return err
	}

	collectionName := s.collectionName(knowledgeBaseID)
	expr := fmt.Sprintf("document_id == %d", documentID)

	if err := s.milvusClient.Delete(ctx, collectionName, "", expr); err != nil {
		return fmt.Errorf("milvus delete failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, collectionName, false); err != nil {
		logger.Warn("failed to flush after delete", zap.String("collection", collectionName), zap.Error(err))
	}

	return nil
}

func (s *milvusVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	if len(req.QueryEmbedding) == 0 {
		return nil, nil
	}

	// 集合不存在说明知识库还没有任何向量，返回空而非报错
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collectionName(req.KnowledgeBaseID))
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !hasCollection {
		return []SearchMatch{}, nil
	}

	if req.Limit == 0 {
		req.Limit = 10
	}

	collectionName := s.collectionName(req.KnowledgeBaseID)

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	queryVector := entity.FloatVector(req.QueryEmbedding)
	searchResults, err := s.milvusClient.Search(
		ctx,
		collectionName,
		[]string{},
		"",
		[]string{"chunk_id", "document_id", "title", "content"},
		[]entity.Vector{queryVector},
		"vector",
		entity.MetricType(s.distance),
		req.Limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}

	if len(searchResults) == 0 {
		return []SearchMatch{}, nil
	}
	if searchResults[0].Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", searchResults[0].Err)
	}

	// 只有一个查询向量，取第一个结果
	result := searchResults[0]
	if result.ResultCount == 0 {
		return []SearchMatch{}, nil
	}

	var ids []int64
	if result.IDs != nil {
		if idCol, ok := result.IDs.(*entity.ColumnInt64); ok {
			ids = idCol.Data()
		}
	}

	var chunkIDs []int64
	var documentIDs []int64
	var titles []string
	var contents []string

	for _, field := range result.Fields {
		switch field.Name() {
		case "chunk_id":
			if val, ok := field.(*entity.ColumnInt64); ok {
				chunkIDs = val.Data()
			}
		case "document_id":
			if val, ok := field.(*entity.ColumnInt64); ok {
				documentIDs = val.Data()
			}
		case "title":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				titles = val.Data()
			}
		case "content":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				contents = val.Data()
			}
		}
	}

	results := make([]SearchMatch, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := SearchMatch{
			Metadata: make(map[string]interface{}),
		}

		if i < len(chunkIDs) {
			match.ChunkID = uint(chunkIDs[i])
		} else if i < len(ids) {
			match.ChunkID = uint(ids[i])
		}
		if i < len(documentIDs) {
			match.DocumentID = uint(documentIDs[i])
		}
		if i < len(titles) {
			match.Title = titles[i]
		}
		if i < len(contents) {
			match.Content = contents[i]
		}
		if i < len(result.Scores) {
			match.Score = float64(result.Scores[i])
		}

		if req.Threshold > 0 && match.Score < req.Threshold {
			continue
		}

		results = append(results, match)
	}

	return results, nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Milvus SDK v2 使用 ListCollections 来检查连接
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}
