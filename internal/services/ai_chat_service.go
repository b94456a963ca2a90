package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/trackhub/backend-go/internal/config"
	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/knowledge"
	"github.com/trackhub/backend-go/internal/logger"
	"github.com/trackhub/backend-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultChatModel   = "gpt-4o-mini"
	historyWindow      = 20  // 带入模型的最近消息数
	ragContextChunks   = 4   // 注入上下文的最大chunk数
	ragScoreThreshold  = 0.5 // 低于该相似度的chunk不注入
	maxMessageLength   = 8000
	titleFromFirstMsgLen = 50
)

// AIChatService AI对话服务
// 支持可选的知识库增强：命中chunk作为system上下文注入
type AIChatService struct {
	db          *gorm.DB
	cfg         config.AIConfig
	client      *openai.Client
	kbs         *KnowledgeBaseService
	embedder    knowledge.Embedder
	vectorStore knowledge.VectorStore
}

// ChatRequest 发送消息请求
type ChatRequest struct {
	ConversationID  uint   `json:"conversation_id,omitempty"`
	Content         string `json:"content"`
	KnowledgeBaseID uint   `json:"knowledge_base_id,omitempty"`
	Model           string `json:"model,omitempty"`
}

// ChatResponse 对话响应
type ChatResponse struct {
	ConversationID uint             `json:"conversation_id"`
	MessageID      uint             `json:"message_id"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	TokenCount     int              `json:"token_count,omitempty"`
	ContextSources []models.Message `json:"-"`
}

// NewAIChatService 创建AI对话服务
func NewAIChatService(db *gorm.DB, cfg config.AIConfig, kbs *KnowledgeBaseService, embedder knowledge.Embedder, vectorStore knowledge.VectorStore) *AIChatService {
	var client *openai.Client
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		client = openai.NewClient(cfg.OpenAIAPIKey)
	}
	return &AIChatService{
		db:          db,
		cfg:         cfg,
		client:      client,
		kbs:         kbs,
		embedder:    embedder,
		vectorStore: vectorStore,
	}
}

// Ready AI服务是否可用
func (s *AIChatService) Ready() bool {
	return s.client != nil
}

// CreateConversation 创建新对话
func (s *AIChatService) CreateConversation(ctx context.Context, userID uint, workspaceID *uint, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	conversation := &models.Conversation{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Title:       title,
		Model:       s.chatModel(""),
		Status:      "active",
		CreateTime:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to create conversation").WithCause(err)
	}

	logger.Info("conversation created",
		zap.Uint("conversation_id", conversation.ConversationID),
		zap.Uint("user_id", userID))
	return conversation, nil
}

// GetConversation 获取对话，仅限本人
func (s *AIChatService) GetConversation(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&conversation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NewNotFoundError("conversation")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to query conversation").WithCause(err)
	}
	return &conversation, nil
}

// ListConversations 获取用户对话列表
func (s *AIChatService) ListConversations(ctx context.Context, userID uint, limit, offset int) ([]models.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var conversations []models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, "active").
		Order("create_time DESC").
		Limit(limit).Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list conversations").WithCause(err)
	}
	return conversations, nil
}

// GetMessages 获取对话消息
func (s *AIChatService) GetMessages(ctx context.Context, conversationID, userID uint, limit, offset int) ([]models.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("create_time ASC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list messages").WithCause(err)
	}
	return messages, nil
}

// ArchiveConversation 归档对话
func (s *AIChatService) ArchiveConversation(ctx context.Context, conversationID, userID uint) error {
	conversation, err := s.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	now := time.Now()
	err = s.db.WithContext(ctx).Model(conversation).Updates(map[string]interface{}{
		"status":      "archived",
		"update_time": now,
	}).Error
	if err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to archive conversation").WithCause(err)
	}
	return nil
}

// SendMessage 发送消息并生成AI回复
// KnowledgeBaseID非零时检索知识库chunk作为上下文注入
func (s *AIChatService) SendMessage(ctx context.Context, userID uint, req *ChatRequest) (*ChatResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.NewValidationError("message content cannot be empty")
	}
	if len([]rune(content)) > maxMessageLength {
		return nil, apperrors.NewValidationError("message content is too long")
	}
	if s.client == nil {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeOperationFailed, "AI service is not configured")
	}

	conversation, err := s.resolveConversation(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	userMessage := &models.Message{
		ConversationID: conversation.ConversationID,
		Role:           "user",
		Content:        content,
		TokenCount:     estimateTokenCount(content),
		CreateTime:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(userMessage).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to save message").WithCause(err)
	}

	chatMessages, err := s.buildChatMessages(ctx, conversation, userID, req)
	if err != nil {
		return nil, err
	}

	model := s.chatModel(req.Model)
	completion, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    chatMessages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: float32(s.cfg.Temperature),
	})
	if err != nil {
		logger.Error("chat completion failed",
			zap.Uint("conversation_id", conversation.ConversationID),
			zap.String("model", model),
			zap.Error(err))
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeOperationFailed, "AI service call failed").WithCause(err)
	}
	if len(completion.Choices) == 0 {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeOperationFailed, "AI service returned no response")
	}

	assistantMessage := &models.Message{
		ConversationID: conversation.ConversationID,
		Role:           "assistant",
		Content:        completion.Choices[0].Message.Content,
		TokenCount:     completion.Usage.CompletionTokens,
		CreateTime:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(assistantMessage).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to save AI message").WithCause(err)
	}

	now := time.Now()
	s.db.WithContext(ctx).Model(conversation).Update("update_time", now)

	logger.Info("AI response generated",
		zap.Uint("conversation_id", conversation.ConversationID),
		zap.String("model", model),
		zap.Int("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int("completion_tokens", completion.Usage.CompletionTokens))

	return &ChatResponse{
		ConversationID: conversation.ConversationID,
		MessageID:      assistantMessage.MessageID,
		Role:           assistantMessage.Role,
		Content:        assistantMessage.Content,
		TokenCount:     assistantMessage.TokenCount,
	}, nil
}

// resolveConversation 获取或自动创建对话
func (s *AIChatService) resolveConversation(ctx context.Context, userID uint, req *ChatRequest) (*models.Conversation, error) {
	if req.ConversationID != 0 {
		return s.GetConversation(ctx, req.ConversationID, userID)
	}

	title := []rune(strings.TrimSpace(req.Content))
	if len(title) > titleFromFirstMsgLen {
		title = title[:titleFromFirstMsgLen]
	}
	return s.CreateConversation(ctx, userID, nil, string(title))
}

// buildChatMessages 组装发给模型的消息序列：system上下文 + 历史 + 当前
func (s *AIChatService) buildChatMessages(ctx context.Context, conversation *models.Conversation, userID uint, req *ChatRequest) ([]openai.ChatCompletionMessage, error) {
	var messages []openai.ChatCompletionMessage

	if req.KnowledgeBaseID != 0 {
		contextText, err := s.retrieveContext(ctx, req.KnowledgeBaseID, userID, req.Content)
		if err != nil {
			return nil, err
		}
		if contextText != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleSystem,
				Content: "Answer using the following knowledge base excerpts when relevant. " +
					"If the excerpts do not cover the question, say so.\n\n" + contextText,
			})
		}
	}

	var history []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversation.ConversationID).
		Order("create_time DESC").
		Limit(historyWindow).
		Find(&history).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load history").WithCause(err)
	}

	// 查询按时间倒序取窗口，再翻回正序
	for i := len(history) - 1; i >= 0; i-- {
		role := openai.ChatMessageRoleUser
		if history[i].Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: history[i].Content,
		})
	}
	return messages, nil
}

// retrieveContext 从知识库检索相关chunk拼接为上下文
func (s *AIChatService) retrieveContext(ctx context.Context, kbID, userID uint, query string) (string, error) {
	if _, err := s.kbs.GetKnowledgeBase(ctx, kbID, userID); err != nil {
		return "", err
	}
	if s.embedder == nil || !s.embedder.Ready() || s.vectorStore == nil {
		return "", nil
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("context embedding failed", zap.Uint("kb_id", kbID), zap.Error(err))
		return "", nil
	}

	matches, err := s.vectorStore.Search(ctx, knowledge.VectorSearchRequest{
		KnowledgeBaseID: kbID,
		QueryEmbedding:  embedding,
		Limit:           ragContextChunks,
		Threshold:       ragScoreThreshold,
	})
	if err != nil {
		logger.Warn("context retrieval failed", zap.Uint("kb_id", kbID), zap.Error(err))
		return "", nil
	}
	if len(matches) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for i, match := range matches {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, match.Title, match.Content)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (s *AIChatService) chatModel(override string) string {
	if override != "" {
		return override
	}
	if s.cfg.ChatModel != "" {
		return s.cfg.ChatModel
	}
	return defaultChatModel
}

// estimateTokenCount 粗略估算token数，每4个字符算一个
func estimateTokenCount(content string) int {
	return len([]rune(content)) / 4
}
