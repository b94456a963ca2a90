package models

import (
	"time"
)

// Conversation AI对话表
type Conversation struct {
	ConversationID uint       `gorm:"primaryKey;column:conversation_id" json:"conversation_id"`
	UserID         uint       `gorm:"column:user_id;not null;index" json:"user_id"`
	WorkspaceID    *uint      `gorm:"column:workspace_id;index" json:"workspace_id"`
	Title          string     `gorm:"size:200" json:"title"`
	Model          string     `gorm:"size:100" json:"model"`
	Status         string     `gorm:"size:20;default:active" json:"status"` // active/archived
	CreateTime     time.Time  `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime     *time.Time `gorm:"column:update_time" json:"update_time"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message 对话消息表
type Message struct {
	MessageID      uint      `gorm:"primaryKey;column:message_id" json:"message_id"`
	ConversationID uint      `gorm:"column:conversation_id;not null;index" json:"conversation_id"`
	Role           string    `gorm:"size:20;not null" json:"role"` // user/assistant/system
	Content        string    `gorm:"type:text;not null" json:"content"`
	TokenCount     int       `gorm:"default:0" json:"token_count"`
	CreateTime     time.Time `gorm:"column:create_time;not null" json:"create_time"`

	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}
