package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/models"
	"gorm.io/gorm"
)

// 模板字段类型
var templateFieldTypes = map[string]bool{
	"text":     true,
	"number":   true,
	"select":   true,
	"date":     true,
	"checkbox": true,
}

// IssueTemplateService 议题模板服务
// 模板定义动态字段，创建议题时渲染并校验为custom_fields
type IssueTemplateService struct {
	db         *gorm.DB
	workspaces *WorkspaceService
}

// NewIssueTemplateService 创建模板服务
func NewIssueTemplateService(db *gorm.DB, workspaces *WorkspaceService) *IssueTemplateService {
	return &IssueTemplateService{db: db, workspaces: workspaces}
}

// CreateTemplateRequest 创建模板请求
type CreateTemplateRequest struct {
	WorkspaceID uint                   `json:"workspace_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Fields      []models.TemplateField `json:"fields"`
}

// CreateTemplate 创建模板
func (s *IssueTemplateService) CreateTemplate(ctx context.Context, creatorID uint, req CreateTemplateRequest) (*models.IssueTemplate, error) {
	member, err := s.workspaces.GetMembership(ctx, req.WorkspaceID, creatorID)
	if err != nil {
		return nil, err
	}
	if !member.CanManage() {
		return nil, apperrors.NewAccessDeniedError()
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperrors.NewInvalidInputError("name", "must not be empty")
	}
	if err := validateFieldDefinitions(req.Fields); err != nil {
		return nil, err
	}

	fieldsJSON, err := json.Marshal(req.Fields)
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to encode fields").WithCause(err)
	}

	template := &models.IssueTemplate{
		WorkspaceID: req.WorkspaceID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Fields:      string(fieldsJSON),
		IsActive:    true,
		CreatorID:   creatorID,
		CreateTime:  time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(template).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to create template").WithCause(err)
	}
	return template, nil
}

// GetTemplate 查询模板（要求调用方是工作区成员）
func (s *IssueTemplateService) GetTemplate(ctx context.Context, templateID, userID uint) (*models.IssueTemplate, error) {
	var template models.IssueTemplate
	if err := s.db.WithContext(ctx).First(&template, "template_id = ?", templateID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("template")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query template").WithCause(err)
	}
	if _, err := s.workspaces.GetMembership(ctx, template.WorkspaceID, userID); err != nil {
		return nil, err
	}
	return &template, nil
}

// ListTemplates 列出工作区的模板
func (s *IssueTemplateService) ListTemplates(ctx context.Context, workspaceID, userID uint) ([]models.IssueTemplate, error) {
	if _, err := s.workspaces.GetMembership(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	var templates []models.IssueTemplate
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("create_time DESC").
		Find(&templates).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list templates").WithCause(err)
	}
	return templates, nil
}

// DeactivateTemplate 停用模板（既有议题不受影响）
func (s *IssueTemplateService) DeactivateTemplate(ctx context.Context, templateID, userID uint) error {
	template, err := s.GetTemplate(ctx, templateID, userID)
	if err != nil {
		return err
	}

	member, err := s.workspaces.GetMembership(ctx, template.WorkspaceID, userID)
	if err != nil {
		return err
	}
	if !member.CanManage() {
		return apperrors.NewAccessDeniedError()
	}

	return s.db.WithContext(ctx).Model(template).Update("is_active", false).Error
}

// RenderFields 按模板定义校验并渲染custom_fields
// 缺失的非必填字段落默认值；必填缺失、类型不符、select越界都报错
func (s *IssueTemplateService) RenderFields(template *models.IssueTemplate, values map[string]interface{}) (string, error) {
	var fields []models.TemplateField
	if err := json.Unmarshal([]byte(template.Fields), &fields); err != nil {
		return "", apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "template fields corrupted").WithCause(err)
	}

	rendered := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		raw, present := values[field.Name]
		if !present {
			if field.Required {
				return "", apperrors.NewInvalidInputError(field.Name, "required field missing")
			}
			if field.Default != "" {
				rendered[field.Name] = field.Default
			}
			continue
		}

		value, err := coerceFieldValue(field, raw)
		if err != nil {
			return "", err
		}
		rendered[field.Name] = value
	}

	out, err := json.Marshal(rendered)
	if err != nil {
		return "", apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to encode custom fields").WithCause(err)
	}
	return string(out), nil
}

func validateFieldDefinitions(fields []models.TemplateField) error {
	if len(fields) == 0 {
		return apperrors.NewInvalidInputError("fields", "must define at least one field")
	}

	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		if field.Name == "" {
			return apperrors.NewInvalidInputError("fields", "field name must not be empty")
		}
		if seen[field.Name] {
			return apperrors.NewInvalidInputError("fields", fmt.Sprintf("duplicate field name: %s", field.Name))
		}
		seen[field.Name] = true

		if !templateFieldTypes[field.Type] {
			return apperrors.NewInvalidInputError(field.Name, fmt.Sprintf("unknown field type: %s", field.Type))
		}
		if field.Type == "select" && len(field.Options) == 0 {
			return apperrors.NewInvalidInputError(field.Name, "select field requires options")
		}
	}
	return nil
}

func coerceFieldValue(field models.TemplateField, raw interface{}) (interface{}, error) {
	switch field.Type {
	case "text":
		str, ok := raw.(string)
		if !ok {
			return nil, apperrors.NewInvalidInputError(field.Name, "expected text")
		}
		return str, nil
	case "number":
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, apperrors.NewInvalidInputError(field.Name, "expected number")
			}
			return parsed, nil
		default:
			return nil, apperrors.NewInvalidInputError(field.Name, "expected number")
		}
	case "select":
		str, ok := raw.(string)
		if !ok {
			return nil, apperrors.NewInvalidInputError(field.Name, "expected option value")
		}
		for _, option := range field.Options {
			if option == str {
				return str, nil
			}
		}
		return nil, apperrors.NewInvalidInputError(field.Name, fmt.Sprintf("value not in options: %s", str))
	case "date":
		str, ok := raw.(string)
		if !ok {
			return nil, apperrors.NewInvalidInputError(field.Name, "expected date string")
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			if _, err := time.Parse(time.RFC3339, str); err != nil {
				return nil, apperrors.NewInvalidInputError(field.Name, "expected date in YYYY-MM-DD or RFC3339 format")
			}
		}
		return str, nil
	case "checkbox":
		b, ok := raw.(bool)
		if !ok {
			return nil, apperrors.NewInvalidInputError(field.Name, "expected boolean")
		}
		return b, nil
	default:
		return nil, apperrors.NewInvalidInputError(field.Name, "unknown field type")
	}
}
