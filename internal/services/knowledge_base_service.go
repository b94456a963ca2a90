package services

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/logger"
	"github.com/trackhub/backend-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// KnowledgeBaseService 知识库服务
type KnowledgeBaseService struct {
	db         *gorm.DB
	workspaces *WorkspaceService
}

// NewKnowledgeBaseService 创建知识库服务
func NewKnowledgeBaseService(db *gorm.DB, workspaces *WorkspaceService) *KnowledgeBaseService {
	return &KnowledgeBaseService{db: db, workspaces: workspaces}
}

// CreateKnowledgeBaseRequest 创建知识库请求
type CreateKnowledgeBaseRequest struct {
	WorkspaceID    uint   `json:"workspace_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	EmbeddingModel string `json:"embedding_model"`
}

// CreateKnowledgeBase 创建知识库
func (s *KnowledgeBaseService) CreateKnowledgeBase(ctx context.Context, creatorID uint, req CreateKnowledgeBaseRequest) (*models.KnowledgeBase, error) {
	if _, err := s.workspaces.GetMembership(ctx, req.WorkspaceID, creatorID); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperrors.NewInvalidInputError("name", "must not be empty")
	}
	if req.EmbeddingModel == "" {
		req.EmbeddingModel = "text-embedding-3-small"
	}

	kb := &models.KnowledgeBase{
		WorkspaceID:    req.WorkspaceID,
		Name:           req.Name,
		Description:    req.Description,
		EmbeddingModel: req.EmbeddingModel,
		CreatorID:      creatorID,
		CreateTime:     time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(kb).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to create knowledge base").WithCause(err)
	}

	logger.Info("knowledge base created",
		zap.Uint("kb_id", kb.KnowledgeBaseID),
		zap.Uint("workspace_id", kb.WorkspaceID))
	return kb, nil
}

// GetKnowledgeBase 查询知识库（要求调用方是工作区成员）
func (s *KnowledgeBaseService) GetKnowledgeBase(ctx context.Context, kbID, userID uint) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	if err := s.db.WithContext(ctx).First(&kb, "knowledge_base_id = ?", kbID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("knowledge base")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query knowledge base").WithCause(err)
	}
	if _, err := s.workspaces.GetMembership(ctx, kb.WorkspaceID, userID); err != nil {
		return nil, err
	}
	return &kb, nil
}

// ListKnowledgeBases 列出工作区知识库
func (s *KnowledgeBaseService) ListKnowledgeBases(ctx context.Context, workspaceID, userID uint) ([]models.KnowledgeBase, error) {
	if _, err := s.workspaces.GetMembership(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	var kbs []models.KnowledgeBase
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("create_time DESC").
		Find(&kbs).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list knowledge bases").WithCause(err)
	}
	return kbs, nil
}

// DeleteKnowledgeBase 删除知识库（仅管理员，文档须先清空）
func (s *KnowledgeBaseService) DeleteKnowledgeBase(ctx context.Context, kbID, userID uint) error {
	kb, err := s.GetKnowledgeBase(ctx, kbID, userID)
	if err != nil {
		return err
	}

	member, err := s.workspaces.GetMembership(ctx, kb.WorkspaceID, userID)
	if err != nil {
		return err
	}
	if !member.CanManage() {
		return apperrors.NewAccessDeniedError()
	}

	var docCount int64
	if err := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("knowledge_base_id = ?", kbID).Count(&docCount).Error; err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to count documents").WithCause(err)
	}
	if docCount > 0 {
		return apperrors.NewBusinessError(apperrors.ErrCodeInvalidState, "knowledge base still has documents")
	}

	return s.db.WithContext(ctx).Delete(&models.KnowledgeBase{}, "knowledge_base_id = ?", kbID).Error
}

// AdjustDocumentCount 文档增删后维护document_count
func (s *KnowledgeBaseService) AdjustDocumentCount(ctx context.Context, kbID uint, delta int) error {
	return s.db.WithContext(ctx).Model(&models.KnowledgeBase{}).
		Where("knowledge_base_id = ?", kbID).
		UpdateColumn("document_count", gorm.Expr("document_count + ?", delta)).Error
}
