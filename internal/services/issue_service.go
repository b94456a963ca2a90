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

var issueStatusTransitions = map[string][]string{
	models.IssueStatusOpen:       {models.IssueStatusInProgress, models.IssueStatusClosed},
	models.IssueStatusInProgress: {models.IssueStatusResolved, models.IssueStatusOpen},
	models.IssueStatusResolved:   {models.IssueStatusClosed, models.IssueStatusOpen},
	models.IssueStatusClosed:     {models.IssueStatusOpen},
}

// IssueService 议题服务
type IssueService struct {
	db         *gorm.DB
	workspaces *WorkspaceService
	templates  *IssueTemplateService
}

// NewIssueService 创建议题服务
func NewIssueService(db *gorm.DB, workspaces *WorkspaceService, templates *IssueTemplateService) *IssueService {
	return &IssueService{db: db, workspaces: workspaces, templates: templates}
}

// CreateIssueRequest 创建议题请求
type CreateIssueRequest struct {
	WorkspaceID uint                   `json:"workspace_id"`
	Title       string                 `json:"title"`
	Content     string                 `json:"content"`
	Category    string                 `json:"category"`
	Priority    string                 `json:"priority"`
	Visibility  string                 `json:"visibility"`
	AssigneeID  *uint                  `json:"assignee_id"`
	TemplateID  *uint                  `json:"template_id"`
	FieldValues map[string]interface{} `json:"field_values"`
}

// UpdateIssueRequest 更新议题请求（nil字段不修改）
type UpdateIssueRequest struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	Category   *string `json:"category"`
	Priority   *string `json:"priority"`
	Visibility *string `json:"visibility"`
	AssigneeID *uint   `json:"assignee_id"`
}

// ListIssuesRequest 议题列表过滤
type ListIssuesRequest struct {
	WorkspaceID uint
	Status      string
	Category    string
	AuthorID    *uint
	Page        int
	PageSize    int
}

// CreateIssue 创建议题，模板字段渲染为custom_fields
func (s *IssueService) CreateIssue(ctx context.Context, authorID uint, req CreateIssueRequest) (*models.Issue, error) {
	if _, err := s.workspaces.GetMembership(ctx, req.WorkspaceID, authorID); err != nil {
		return nil, err
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, apperrors.NewInvalidInputError("title", "must not be empty")
	}
	if len(req.Title) > 300 {
		return nil, apperrors.NewInvalidInputError("title", "must be at most 300 characters")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.NewInvalidInputError("content", "must not be empty")
	}

	switch req.Visibility {
	case models.VisibilityPublic, models.VisibilityWorkspace, models.VisibilityPrivate:
	case "":
		req.Visibility = models.VisibilityWorkspace
	default:
		return nil, apperrors.NewInvalidInputError("visibility", "must be public, workspace or private")
	}

	switch req.Priority {
	case "low", "medium", "high", "urgent":
	case "":
		req.Priority = "medium"
	default:
		return nil, apperrors.NewInvalidInputError("priority", "must be low, medium, high or urgent")
	}

	customFields := ""
	if req.TemplateID != nil {
		template, err := s.templates.GetTemplate(ctx, *req.TemplateID, authorID)
		if err != nil {
			return nil, err
		}
		if template.WorkspaceID != req.WorkspaceID {
			return nil, apperrors.NewInvalidInputError("template_id", "template belongs to another workspace")
		}
		customFields, err = s.templates.RenderFields(template, req.FieldValues)
		if err != nil {
			return nil, err
		}
	}

	issue := &models.Issue{
		WorkspaceID:  req.WorkspaceID,
		Title:        req.Title,
		Content:      req.Content,
		Category:     req.Category,
		Status:       models.IssueStatusOpen,
		Priority:     req.Priority,
		Visibility:   req.Visibility,
		AuthorID:     authorID,
		AssigneeID:   req.AssigneeID,
		TemplateID:   req.TemplateID,
		CustomFields: customFields,
		CreateTime:   time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(issue).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to create issue").WithCause(err)
	}

	logger.Info("issue created",
		zap.Uint("issue_id", issue.IssueID),
		zap.Uint("workspace_id", issue.WorkspaceID),
		zap.Uint("author_id", authorID))
	return issue, nil
}

// GetIssue 查询议题并做可见性检查
func (s *IssueService) GetIssue(ctx context.Context, issueID uint, userID *uint) (*models.Issue, error) {
	var issue models.Issue
	if err := s.db.WithContext(ctx).First(&issue, "issue_id = ?", issueID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("issue")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query issue").WithCause(err)
	}

	if err := s.checkVisibility(ctx, &issue, userID); err != nil {
		return nil, err
	}
	return &issue, nil
}

// checkVisibility 可见性规则：public任何人可见；workspace要求成员；private仅作者
func (s *IssueService) checkVisibility(ctx context.Context, issue *models.Issue, userID *uint) error {
	switch issue.Visibility {
	case models.VisibilityPublic:
		return nil
	case models.VisibilityWorkspace:
		if userID == nil {
			return apperrors.NewAccessDeniedError()
		}
		if _, err := s.workspaces.GetMembership(ctx, issue.WorkspaceID, *userID); err != nil {
			return apperrors.NewAccessDeniedError()
		}
		return nil
	case models.VisibilityPrivate:
		if userID == nil || *userID != issue.AuthorID {
			return apperrors.NewAccessDeniedError()
		}
		return nil
	default:
		return apperrors.NewAccessDeniedError()
	}
}

// ListIssues 分页列出工作区议题
func (s *IssueService) ListIssues(ctx context.Context, userID uint, req ListIssuesRequest) ([]models.Issue, int64, error) {
	if _, err := s.workspaces.GetMembership(ctx, req.WorkspaceID, userID); err != nil {
		return nil, 0, err
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	tx := s.db.WithContext(ctx).Model(&models.Issue{}).Where("workspace_id = ?", req.WorkspaceID)
	// private议题只对作者可见
	tx = tx.Where("visibility <> ? OR author_id = ?", models.VisibilityPrivate, userID)
	if req.Status != "" {
		tx = tx.Where("status = ?", req.Status)
	}
	if req.Category != "" {
		tx = tx.Where("category = ?", req.Category)
	}
	if req.AuthorID != nil {
		tx = tx.Where("author_id = ?", *req.AuthorID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to count issues").WithCause(err)
	}

	var issues []models.Issue
	err := tx.Order("create_time DESC").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&issues).Error
	if err != nil {
		return nil, 0, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list issues").WithCause(err)
	}
	return issues, total, nil
}

// UpdateIssue 更新议题（作者或工作区管理员）
func (s *IssueService) UpdateIssue(ctx context.Context, issueID, userID uint, req UpdateIssueRequest) (*models.Issue, error) {
	issue, err := s.GetIssue(ctx, issueID, &userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEditable(ctx, issue, userID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" || len(title) > 300 {
			return nil, apperrors.NewInvalidInputError("title", "must be 1-300 characters")
		}
		updates["title"] = title
	}
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			return nil, apperrors.NewInvalidInputError("content", "must not be empty")
		}
		updates["content"] = *req.Content
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Priority != nil {
		switch *req.Priority {
		case "low", "medium", "high", "urgent":
			updates["priority"] = *req.Priority
		default:
			return nil, apperrors.NewInvalidInputError("priority", "must be low, medium, high or urgent")
		}
	}
	if req.Visibility != nil {
		switch *req.Visibility {
		case models.VisibilityPublic, models.VisibilityWorkspace, models.VisibilityPrivate:
			updates["visibility"] = *req.Visibility
		default:
			return nil, apperrors.NewInvalidInputError("visibility", "must be public, workspace or private")
		}
	}
	if req.AssigneeID != nil {
		updates["assignee_id"] = *req.AssigneeID
	}

	if len(updates) == 0 {
		return issue, nil
	}
	updates["update_time"] = time.Now()

	if err := s.db.WithContext(ctx).Model(issue).Updates(updates).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to update issue").WithCause(err)
	}
	return issue, nil
}

// TransitionStatus 状态流转，非法流转报错
func (s *IssueService) TransitionStatus(ctx context.Context, issueID, userID uint, newStatus string) (*models.Issue, error) {
	issue, err := s.GetIssue(ctx, issueID, &userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEditable(ctx, issue, userID); err != nil {
		return nil, err
	}

	allowed := issueStatusTransitions[issue.Status]
	valid := false
	for _, status := range allowed {
		if status == newStatus {
			valid = true
			break
		}
	}
	if !valid {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeInvalidState,
			"cannot transition from "+issue.Status+" to "+newStatus)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(issue).Updates(map[string]interface{}{
		"status":      newStatus,
		"update_time": now,
	}).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to update status").WithCause(err)
	}
	issue.Status = newStatus
	issue.UpdateTime = &now
	return issue, nil
}

// DeleteIssue 删除议题（作者或工作区管理员）
func (s *IssueService) DeleteIssue(ctx context.Context, issueID, userID uint) error {
	issue, err := s.GetIssue(ctx, issueID, &userID)
	if err != nil {
		return err
	}
	if err := s.checkEditable(ctx, issue, userID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Issue{}, "issue_id = ?", issueID).Error
}

func (s *IssueService) checkEditable(ctx context.Context, issue *models.Issue, userID uint) error {
	if issue.AuthorID == userID {
		return nil
	}
	member, err := s.workspaces.GetMembership(ctx, issue.WorkspaceID, userID)
	if err != nil {
		return err
	}
	if !member.CanManage() {
		return apperrors.NewAccessDeniedError()
	}
	return nil
}
