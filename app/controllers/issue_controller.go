package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/trackhub/backend-go/internal/services"
)

// IssueController 议题控制器
type IssueController struct {
	BaseController
	issueService *services.IssueService
}

// NewIssueController 创建议题控制器
func NewIssueController(issueService *services.IssueService) *IssueController {
	return &IssueController{issueService: issueService}
}

// Create 创建议题
func (c *IssueController) Create() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	var req services.CreateIssueRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	issue, err := c.issueService.CreateIssue(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONCreated(issue)
}

// Get 议题详情
func (c *IssueController) Get() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	issueID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	issue, err := c.issueService.GetIssue(c.Ctx.Request.Context(), issueID, &userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(issue)
}

// List 议题列表
func (c *IssueController) List() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	workspaceID, err := strconv.ParseUint(c.GetString("workspace_id"), 10, 32)
	if err != nil || workspaceID == 0 {
		c.JSONError(http.StatusBadRequest, "workspace_id query parameter is required")
		return
	}

	page, _ := strconv.Atoi(c.GetString("page", "1"))
	pageSize, _ := strconv.Atoi(c.GetString("page_size", "20"))

	req := services.ListIssuesRequest{
		WorkspaceID: uint(workspaceID),
		Status:      c.GetString("status"),
		Category:    c.GetString("category"),
		Page:        page,
		PageSize:    pageSize,
	}
	if authorStr := c.GetString("author_id"); authorStr != "" {
		if authorID, err := strconv.ParseUint(authorStr, 10, 32); err == nil {
			id := uint(authorID)
			req.AuthorID = &id
		}
	}

	issues, total, err := c.issueService.ListIssues(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"issues":    issues,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Update 更新议题
func (c *IssueController) Update() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	issueID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	var req services.UpdateIssueRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	issue, err := c.issueService.UpdateIssue(c.Ctx.Request.Context(), issueID, userID, req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(issue)
}

// Transition 状态流转
func (c *IssueController) Transition() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	issueID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	issue, err := c.issueService.TransitionStatus(c.Ctx.Request.Context(), issueID, userID, req.Status)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(issue)
}

// Delete 删除议题
func (c *IssueController) Delete() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	issueID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	if err := c.issueService.DeleteIssue(c.Ctx.Request.Context(), issueID, userID); err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "issue deleted"})
}
