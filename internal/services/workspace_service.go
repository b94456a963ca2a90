package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/logger"
	"github.com/trackhub/backend-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// WorkspaceService 工作区服务
// 工作区是多租户边界：议题、知识库、文档都挂在工作区下
type WorkspaceService struct {
	db *gorm.DB
}

// NewWorkspaceService 创建工作区服务
func NewWorkspaceService(db *gorm.DB) *WorkspaceService {
	return &WorkspaceService{db: db}
}

// CreateWorkspaceRequest 创建工作区请求
type CreateWorkspaceRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// CreateWorkspace 创建工作区，创建者自动成为owner成员
func (s *WorkspaceService) CreateWorkspace(ctx context.Context, ownerID uint, req CreateWorkspaceRequest) (*models.Workspace, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))

	if req.Name == "" {
		return nil, apperrors.NewInvalidInputError("name", "must not be empty")
	}
	if !slugPattern.MatchString(req.Slug) {
		return nil, apperrors.NewInvalidInputError("slug", "must be lowercase alphanumeric with hyphens")
	}

	workspace := &models.Workspace{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		OwnerID:     ownerID,
		CreateTime:  time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Workspace{}).Where("slug = ?", req.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.NewBusinessError(apperrors.ErrCodeConflict, "slug already taken")
		}

		if err := tx.Create(workspace).Error; err != nil {
			return err
		}

		member := &models.WorkspaceMember{
			WorkspaceID: workspace.WorkspaceID,
			UserID:      ownerID,
			Role:        models.WorkspaceRoleOwner,
			JoinTime:    time.Now(),
		}
		return tx.Create(member).Error
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to create workspace").WithCause(err)
	}

	logger.Info("workspace created",
		zap.Uint("workspace_id", workspace.WorkspaceID),
		zap.Uint("owner_id", ownerID))
	return workspace, nil
}

// GetWorkspace 按ID查询工作区（要求调用方是成员）
func (s *WorkspaceService) GetWorkspace(ctx context.Context, workspaceID, userID uint) (*models.Workspace, error) {
	if _, err := s.GetMembership(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	var workspace models.Workspace
	if err := s.db.WithContext(ctx).First(&workspace, "workspace_id = ?", workspaceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("workspace")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query workspace").WithCause(err)
	}
	return &workspace, nil
}

// ListUserWorkspaces 列出用户所属的工作区
func (s *WorkspaceService) ListUserWorkspaces(ctx context.Context, userID uint) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	err := s.db.WithContext(ctx).
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.workspace_id").
		Where("workspace_members.user_id = ?", userID).
		Order("workspaces.create_time DESC").
		Find(&workspaces).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list workspaces").WithCause(err)
	}
	return workspaces, nil
}

// MemberWorkspaceIDs 用户所属工作区ID集合（检索可见范围的来源）
func (s *WorkspaceService) MemberWorkspaceIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("user_id = ?", userID).
		Pluck("workspace_id", &ids).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query memberships").WithCause(err)
	}
	return ids, nil
}

// GetMembership 查询成员关系
func (s *WorkspaceService) GetMembership(ctx context.Context, workspaceID, userID uint) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewAccessDeniedError()
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query membership").WithCause(err)
	}
	return &member, nil
}

// AddMember 添加成员（仅owner/admin可操作）
func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID, operatorID, userID uint, role string) (*models.WorkspaceMember, error) {
	operator, err := s.GetMembership(ctx, workspaceID, operatorID)
	if err != nil {
		return nil, err
	}
	if !operator.CanManage() {
		return nil, apperrors.NewAccessDeniedError()
	}

	switch role {
	case models.WorkspaceRoleAdmin, models.WorkspaceRoleMember:
	case "":
		role = models.WorkspaceRoleMember
	default:
		return nil, apperrors.NewInvalidInputError("role", "must be admin or member")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error; err != nil {
		return nil, apperrors.NewNotFoundError("user")
	}

	member := &models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		JoinTime:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeConflict, "user is already a member")
	}
	return member, nil
}

// RemoveMember 移除成员（owner不可被移除）
func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, operatorID, userID uint) error {
	operator, err := s.GetMembership(ctx, workspaceID, operatorID)
	if err != nil {
		return err
	}
	if !operator.CanManage() && operatorID != userID {
		return apperrors.NewAccessDeniedError()
	}

	target, err := s.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if target.Role == models.WorkspaceRoleOwner {
		return apperrors.NewBusinessError(apperrors.ErrCodeInvalidState, "workspace owner cannot be removed")
	}

	return s.db.WithContext(ctx).Delete(&models.WorkspaceMember{}, "member_id = ?", target.MemberID).Error
}

// ListMembers 列出工作区成员
func (s *WorkspaceService) ListMembers(ctx context.Context, workspaceID, userID uint) ([]models.WorkspaceMember, error) {
	if _, err := s.GetMembership(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	var members []models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("join_time ASC").
		Find(&members).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list members").WithCause(err)
	}
	return members, nil
}
