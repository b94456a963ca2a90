package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/models"
)

func templateWithFields(t *testing.T, fields []models.TemplateField) *models.IssueTemplate {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return &models.IssueTemplate{TemplateID: 1, Fields: string(raw)}
}

// TestRenderFields_RequiredMissing 必填字段缺失报错
func TestRenderFields_RequiredMissing(t *testing.T) {
	svc := &IssueTemplateService{}
	template := templateWithFields(t, []models.TemplateField{
		{Name: "severity", Type: "select", Required: true, Options: []string{"low", "high"}},
	})

	_, err := svc.RenderFields(template, map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetAppError(err).Code)
}

// TestRenderFields_DefaultApplied 非必填缺失落默认值
func TestRenderFields_DefaultApplied(t *testing.T) {
	svc := &IssueTemplateService{}
	template := templateWithFields(t, []models.TemplateField{
		{Name: "env", Type: "text", Default: "production"},
	})

	rendered, err := svc.RenderFields(template, map[string]interface{}{})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(rendered), &out))
	assert.Equal(t, "production", out["env"])
}

// TestRenderFields_TypeCoercion 类型校验与转换
func TestRenderFields_TypeCoercion(t *testing.T) {
	svc := &IssueTemplateService{}
	template := templateWithFields(t, []models.TemplateField{
		{Name: "count", Type: "number"},
		{Name: "due", Type: "date"},
		{Name: "urgent", Type: "checkbox"},
	})

	rendered, err := svc.RenderFields(template, map[string]interface{}{
		"count":  "42",
		"due":    "2026-09-01",
		"urgent": true,
	})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(rendered), &out))
	assert.Equal(t, 42.0, out["count"])
	assert.Equal(t, "2026-09-01", out["due"])
	assert.Equal(t, true, out["urgent"])
}

// TestRenderFields_SelectOutOfOptions select越界报错
func TestRenderFields_SelectOutOfOptions(t *testing.T) {
	svc := &IssueTemplateService{}
	template := templateWithFields(t, []models.TemplateField{
		{Name: "severity", Type: "select", Options: []string{"low", "high"}},
	})

	_, err := svc.RenderFields(template, map[string]interface{}{"severity": "medium"})
	assert.Error(t, err)
}

// TestRenderFields_InvalidDate 非法日期报错
func TestRenderFields_InvalidDate(t *testing.T) {
	svc := &IssueTemplateService{}
	template := templateWithFields(t, []models.TemplateField{
		{Name: "due", Type: "date"},
	})

	_, err := svc.RenderFields(template, map[string]interface{}{"due": "not-a-date"})
	assert.Error(t, err)
}

// TestValidateFieldDefinitions 字段定义校验
func TestValidateFieldDefinitions(t *testing.T) {
	// 空字段集
	err := validateFieldDefinitions(nil)
	assert.Error(t, err)

	// 重复字段名
	err = validateFieldDefinitions([]models.TemplateField{
		{Name: "a", Type: "text"},
		{Name: "a", Type: "number"},
	})
	assert.Error(t, err)

	// select缺options
	err = validateFieldDefinitions([]models.TemplateField{
		{Name: "sev", Type: "select"},
	})
	assert.Error(t, err)

	// 未知类型
	err = validateFieldDefinitions([]models.TemplateField{
		{Name: "x", Type: "regex"},
	})
	assert.Error(t, err)

	// 合法定义
	err = validateFieldDefinitions([]models.TemplateField{
		{Name: "env", Type: "text", Default: "prod"},
		{Name: "sev", Type: "select", Options: []string{"low"}},
	})
	assert.NoError(t, err)
}
