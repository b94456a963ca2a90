package models

import (
	"time"
)

// KnowledgeBase 知识库表（RAG检索的索引边界）
type KnowledgeBase struct {
	KnowledgeBaseID uint       `gorm:"primaryKey;column:knowledge_base_id" json:"knowledge_base_id"`
	WorkspaceID     uint       `gorm:"column:workspace_id;not null;index" json:"workspace_id"`
	Name            string     `gorm:"size:100;not null" json:"name"`
	Description     string     `gorm:"type:text" json:"description"`
	EmbeddingModel  string     `gorm:"size:100" json:"embedding_model"`
	DocumentCount   int        `gorm:"default:0" json:"document_count"`
	CreatorID       uint       `gorm:"column:creator_id;not null" json:"creator_id"`
	CreateTime      time.Time  `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime      *time.Time `gorm:"column:update_time" json:"update_time"`

	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"-"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}
