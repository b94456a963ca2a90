package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/trackhub/backend-go/internal/services"
)

// WorkspaceController 工作区控制器
type WorkspaceController struct {
	BaseController
	workspaceService *services.WorkspaceService
}

// NewWorkspaceController 创建工作区控制器
func NewWorkspaceController(workspaceService *services.WorkspaceService) *WorkspaceController {
	return &WorkspaceController{workspaceService: workspaceService}
}

// Create 创建工作区
func (c *WorkspaceController) Create() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	var req services.CreateWorkspaceRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	workspace, err := c.workspaceService.CreateWorkspace(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONCreated(workspace)
}

// List 当前用户的工作区列表
func (c *WorkspaceController) List() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	workspaces, err := c.workspaceService.ListUserWorkspaces(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(workspaces)
}

// Get 工作区详情
func (c *WorkspaceController) Get() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	workspaceID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	workspace, err := c.workspaceService.GetWorkspace(c.Ctx.Request.Context(), workspaceID, userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(workspace)
}

// AddMember 添加成员
func (c *WorkspaceController) AddMember() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	workspaceID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	var req struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := c.workspaceService.AddMember(c.Ctx.Request.Context(), workspaceID, userID, req.UserID, req.Role)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONCreated(member)
}

// RemoveMember 移除成员
func (c *WorkspaceController) RemoveMember() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	workspaceID, ok := c.uintParam(":id")
	if !ok {
		return
	}
	memberID, ok := c.uintParam(":user_id")
	if !ok {
		return
	}

	if err := c.workspaceService.RemoveMember(c.Ctx.Request.Context(), workspaceID, userID, memberID); err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "member removed"})
}

// ListMembers 成员列表
func (c *WorkspaceController) ListMembers() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	workspaceID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	members, err := c.workspaceService.ListMembers(c.Ctx.Request.Context(), workspaceID, userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(members)
}
