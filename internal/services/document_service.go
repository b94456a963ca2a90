package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/kafka"
	"github.com/trackhub/backend-go/internal/knowledge"
	"github.com/trackhub/backend-go/internal/logger"
	"github.com/trackhub/backend-go/internal/metrics"
	"github.com/trackhub/backend-go/internal/models"
	"github.com/trackhub/backend-go/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxDocumentSize = 50 << 20 // 50MB

// DocumentService 文档服务
// 上传落对象存储后异步解析、分块、嵌入并写入向量/全文索引
type DocumentService struct {
	db          *gorm.DB
	workspaces  *WorkspaceService
	kbs         *KnowledgeBaseService
	store       *storage.ObjectStore
	parser      *knowledge.FileParserManager
	chunker     *knowledge.Chunker
	embedder    knowledge.Embedder
	vectorStore knowledge.VectorStore
	indexer     knowledge.FulltextIndexer
}

// NewDocumentService 创建文档服务
func NewDocumentService(
	db *gorm.DB,
	workspaces *WorkspaceService,
	kbs *KnowledgeBaseService,
	store *storage.ObjectStore,
	embedder knowledge.Embedder,
	vectorStore knowledge.VectorStore,
	indexer knowledge.FulltextIndexer,
) *DocumentService {
	return &DocumentService{
		db:          db,
		workspaces:  workspaces,
		kbs:         kbs,
		store:       store,
		parser:      knowledge.NewFileParserManager(),
		chunker:     knowledge.NewChunker(800, 100),
		embedder:    embedder,
		vectorStore: vectorStore,
		indexer:     indexer,
	}
}

// UploadDocument 上传文档：存对象、建记录、触发异步索引
func (s *DocumentService) UploadDocument(ctx context.Context, kbID, uploaderID uint, header *multipart.FileHeader) (*models.Document, error) {
	kb, err := s.kbs.GetKnowledgeBase(ctx, kbID, uploaderID)
	if err != nil {
		return nil, err
	}

	if header.Size > maxDocumentSize {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeFileTooLarge, "file exceeds 50MB limit")
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	supported := false
	for _, format := range s.parser.GetSupportedFormats() {
		if ext == format {
			supported = true
			break
		}
	}
	if !supported {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeInvalidFileFormat,
			fmt.Sprintf("unsupported file format: %s", ext))
	}

	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeUploadFailed, "failed to open uploaded file").WithCause(err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxDocumentSize+1))
	if err != nil {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeUploadFailed, "failed to read uploaded file").WithCause(err)
	}
	if int64(len(content)) > maxDocumentSize {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeFileTooLarge, "file exceeds 50MB limit")
	}

	title := strings.TrimSuffix(header.Filename, ext)
	doc := &models.Document{
		KnowledgeBaseID: kbID,
		Title:           title,
		FileName:        header.Filename,
		FileType:        strings.TrimPrefix(ext, "."),
		FileSize:        int64(len(content)),
		Status:          models.DocumentStatusUploaded,
		UploaderID:      uploaderID,
		CreateTime:      time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to create document").WithCause(err)
	}

	objectKey := storage.DocumentKey(kbID, doc.DocumentID, header.Filename)
	if s.store.Available() {
		contentType := header.Header.Get("Content-Type")
		if err := s.store.Upload(ctx, objectKey, bytes.NewReader(content), int64(len(content)), contentType); err != nil {
			s.db.WithContext(ctx).Delete(doc)
			return nil, apperrors.NewBusinessError(apperrors.ErrCodeUploadFailed, "failed to store file").WithCause(err)
		}
		s.db.WithContext(ctx).Model(doc).Update("object_key", objectKey)
		doc.ObjectKey = objectKey
	}

	if err := s.kbs.AdjustDocumentCount(ctx, kbID, 1); err != nil {
		logger.Warn("document count update failed", zap.Uint("kb_id", kbID), zap.Error(err))
	}

	kafka.PublishDocumentEvent(kafka.EventDocumentUploaded, doc.DocumentID, kbID, kb.WorkspaceID, uploaderID, doc.FileName, 0, nil)

	// 索引在后台执行，上传请求立即返回
	go s.indexDocument(doc.DocumentID, kb.WorkspaceID, content)

	return doc, nil
}

// indexDocument 解析、分块、嵌入并写入索引
// 任一步失败把文档置为failed并发失败事件，不影响请求流程
func (s *DocumentService) indexDocument(docID uint, workspaceID uint, content []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, "document_id = ?", docID).Error; err != nil {
		logger.Error("document vanished before indexing", zap.Uint("document_id", docID), zap.Error(err))
		return
	}

	s.db.WithContext(ctx).Model(&doc).Update("status", models.DocumentStatusProcessing)

	text, err := s.parser.ParseFile(bytes.NewReader(content), doc.FileName)
	if err != nil {
		s.markFailed(ctx, &doc, workspaceID, err)
		return
	}

	chunks := s.chunker.Split(text)
	indexed := 0
	for _, chunk := range chunks {
		// chunk ID由文档ID和块序号合成，保证跨文档唯一
		chunkID := doc.DocumentID*1000000 + uint(chunk.Index)

		if s.embedder != nil && s.embedder.Ready() && s.vectorStore != nil {
			embedding, err := s.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				s.markFailed(ctx, &doc, workspaceID, err)
				return
			}
			_, err = s.vectorStore.UpsertChunk(ctx, knowledge.VectorChunk{
				ChunkID:         chunkID,
				DocumentID:      doc.DocumentID,
				KnowledgeBaseID: doc.KnowledgeBaseID,
				Title:           doc.Title,
				Text:            chunk.Text,
				Embedding:       embedding,
			})
			if err != nil {
				s.markFailed(ctx, &doc, workspaceID, err)
				return
			}
		}

		if s.indexer != nil {
			err := s.indexer.IndexChunk(ctx, knowledge.FulltextChunk{
				ChunkID:         chunkID,
				DocumentID:      doc.DocumentID,
				KnowledgeBaseID: doc.KnowledgeBaseID,
				Title:           doc.Title,
				Content:         chunk.Text,
				ChunkIndex:      chunk.Index,
				FileName:        doc.FileName,
				FileType:        doc.FileType,
				CreatedAt:       time.Now(),
			})
			if err != nil {
				s.markFailed(ctx, &doc, workspaceID, err)
				return
			}
		}
		indexed++
	}

	now := time.Now()
	s.db.WithContext(ctx).Model(&doc).Updates(map[string]interface{}{
		"status":      models.DocumentStatusIndexed,
		"content":     text,
		"chunk_count": indexed,
		"update_time": now,
	})

	metrics.DocumentIndexTotal.WithLabelValues("indexed").Inc()
	kafka.PublishDocumentEvent(kafka.EventDocumentIndexed, doc.DocumentID, doc.KnowledgeBaseID, workspaceID, doc.UploaderID, doc.FileName, indexed, nil)
	logger.Info("document indexed",
		zap.Uint("document_id", doc.DocumentID),
		zap.Int("chunks", indexed))
}

func (s *DocumentService) markFailed(ctx context.Context, doc *models.Document, workspaceID uint, cause error) {
	s.db.WithContext(ctx).Model(doc).Update("status", models.DocumentStatusFailed)
	metrics.DocumentIndexTotal.WithLabelValues("failed").Inc()
	kafka.PublishDocumentEvent(kafka.EventDocumentFailed, doc.DocumentID, doc.KnowledgeBaseID, workspaceID, doc.UploaderID, doc.FileName, 0, cause)
	logger.Error("document indexing failed",
		zap.Uint("document_id", doc.DocumentID),
		zap.Error(cause))
}

// GetDocument 查询文档
func (s *DocumentService) GetDocument(ctx context.Context, docID, userID uint) (*models.Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, "document_id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("document")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query document").WithCause(err)
	}
	if _, err := s.kbs.GetKnowledgeBase(ctx, doc.KnowledgeBaseID, userID); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments 列出知识库文档
func (s *DocumentService) ListDocuments(ctx context.Context, kbID, userID uint) ([]models.Document, error) {
	if _, err := s.kbs.GetKnowledgeBase(ctx, kbID, userID); err != nil {
		return nil, err
	}

	var docs []models.Document
	err := s.db.WithContext(ctx).
		Where("knowledge_base_id = ?", kbID).
		Order("create_time DESC").
		Find(&docs).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list documents").WithCause(err)
	}
	return docs, nil
}

// DownloadURL 生成限时下载链接
func (s *DocumentService) DownloadURL(ctx context.Context, docID, userID uint) (string, error) {
	doc, err := s.GetDocument(ctx, docID, userID)
	if err != nil {
		return "", err
	}
	if doc.ObjectKey == "" || !s.store.Available() {
		return "", apperrors.NewBusinessError(apperrors.ErrCodeOperationFailed, "document has no stored file")
	}
	return s.store.PresignedURL(ctx, doc.ObjectKey, time.Hour)
}

// DeleteDocument 删除文档及其索引数据
func (s *DocumentService) DeleteDocument(ctx context.Context, docID, userID uint) error {
	doc, err := s.GetDocument(ctx, docID, userID)
	if err != nil {
		return err
	}

	kb, err := s.kbs.GetKnowledgeBase(ctx, doc.KnowledgeBaseID, userID)
	if err != nil {
		return err
	}

	// 索引清理失败只告警，数据库记录删除优先
	if s.vectorStore != nil {
		if err := s.vectorStore.DeleteDocument(ctx, doc.KnowledgeBaseID, doc.DocumentID); err != nil {
			logger.Warn("vector cleanup failed", zap.Uint("document_id", docID), zap.Error(err))
		}
	}
	if s.indexer != nil {
		if err := s.indexer.RemoveDocument(ctx, doc.KnowledgeBaseID, doc.DocumentID); err != nil {
			logger.Warn("fulltext cleanup failed", zap.Uint("document_id", docID), zap.Error(err))
		}
	}
	if doc.ObjectKey != "" && s.store.Available() {
		if err := s.store.Delete(ctx, doc.ObjectKey); err != nil {
			logger.Warn("object cleanup failed", zap.Uint("document_id", docID), zap.Error(err))
		}
	}

	if err := s.db.WithContext(ctx).Delete(&models.Document{}, "document_id = ?", docID).Error; err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to delete document").WithCause(err)
	}

	if err := s.kbs.AdjustDocumentCount(ctx, doc.KnowledgeBaseID, -1); err != nil {
		logger.Warn("document count update failed", zap.Uint("kb_id", doc.KnowledgeBaseID), zap.Error(err))
	}

	kafka.PublishDocumentEvent(kafka.EventDocumentDeleted, doc.DocumentID, doc.KnowledgeBaseID, kb.WorkspaceID, userID, doc.FileName, 0, nil)
	return nil
}
