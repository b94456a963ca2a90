package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/trackhub/backend-go/internal/services"
)

// TemplateController 议题模板控制器
type TemplateController struct {
	BaseController
	templateService *services.IssueTemplateService
}

// NewTemplateController 创建模板控制器
func NewTemplateController(templateService *services.IssueTemplateService) *TemplateController {
	return &TemplateController{templateService: templateService}
}

// Create 创建模板
func (c *TemplateController) Create() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	var req services.CreateTemplateRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	template, err := c.templateService.CreateTemplate(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONCreated(template)
}

// Get 模板详情
func (c *TemplateController) Get() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	templateID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	template, err := c.templateService.GetTemplate(c.Ctx.Request.Context(), templateID, userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(template)
}

// List 工作区模板列表
func (c *TemplateController) List() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	workspaceID, err := strconv.ParseUint(c.GetString("workspace_id"), 10, 32)
	if err != nil || workspaceID == 0 {
		c.JSONError(http.StatusBadRequest, "workspace_id query parameter is required")
		return
	}

	templates, err := c.templateService.ListTemplates(c.Ctx.Request.Context(), uint(workspaceID), userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(templates)
}

// Deactivate 停用模板
func (c *TemplateController) Deactivate() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	templateID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	if err := c.templateService.DeactivateTemplate(c.Ctx.Request.Context(), templateID, userID); err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "template deactivated"})
}
