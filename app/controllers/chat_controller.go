package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/trackhub/backend-go/internal/services"
)

// ChatController AI对话控制器
type ChatController struct {
	BaseController
	chatService *services.AIChatService
}

// NewChatController 创建对话控制器
func NewChatController(chatService *services.AIChatService) *ChatController {
	return &ChatController{chatService: chatService}
}

// SendMessage 发送消息，conversation_id为空时自动建会话
func (c *ChatController) SendMessage() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	var req services.ChatRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := c.chatService.SendMessage(c.Ctx.Request.Context(), userID, &req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(resp)
}

// ListConversations 会话列表
func (c *ChatController) ListConversations() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.GetString("limit", "20"))
	offset, _ := strconv.Atoi(c.GetString("offset", "0"))

	conversations, err := c.chatService.ListConversations(c.Ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(conversations)
}

// GetMessages 会话消息列表
func (c *ChatController) GetMessages() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	conversationID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.GetString("limit", "50"))
	offset, _ := strconv.Atoi(c.GetString("offset", "0"))

	messages, err := c.chatService.GetMessages(c.Ctx.Request.Context(), conversationID, userID, limit, offset)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(messages)
}

// Archive 归档会话
func (c *ChatController) Archive() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}
	conversationID, ok := c.uintParam(":id")
	if !ok {
		return
	}

	if err := c.chatService.ArchiveConversation(c.Ctx.Request.Context(), conversationID, userID); err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "conversation archived"})
}
