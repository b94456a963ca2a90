package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/trackhub/backend-go/internal/services"
)

// KnowledgeBaseController 知识库控制器
type KnowledgeBaseController struct {
	BaseController
	kbService *services.KnowledgeBaseService
}

// NewKnowledgeBaseController 创建知识库控制器
func NewKnowledgeBaseController(kbService *services.KnowledgeBaseService) *KnowledgeBaseController {
	return &KnowledgeBaseController{kbService: kbService}
}

// Create 创建知识库
func (c *KnowledgeBaseController) Create() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	var req services.CreateKnowledgeBaseRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	kb, err := c.kbService.CreateKnowledgeBase(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONCreated(kb)
}

// Get 知识库详情
func (c *KnowledgeBaseController) Get() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	kbID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	kb, err := c.kbService.GetKnowledgeBase(c.Ctx.Request.Context(), kbID, userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(kb)
}

// List 工作区知识库列表
func (c *KnowledgeBaseController) List() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	workspaceID, err := strconv.ParseUint(c.GetString("workspace_id"), 10, 32)
	if err != nil || workspaceID == 0 {
		c.JSONError(http.StatusBadRequest, "workspace_id query parameter is required")
		return
	}

	kbs, err := c.kbService.ListKnowledgeBases(c.Ctx.Request.Context(), uint(workspaceID), userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(kbs)
}

// Delete 删除知识库
func (c *KnowledgeBaseController) Delete() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	kbID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	if err := c.kbService.DeleteKnowledgeBase(c.Ctx.Request.Context(), kbID, userID); err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "knowledge base deleted"})
}
