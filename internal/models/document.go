package models

import (
	"time"
)

// 文档处理状态
const (
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusProcessing = "processing"
	DocumentStatusIndexed    = "indexed"
	DocumentStatusFailed     = "failed"
)

// Document 文档表
type Document struct {
	DocumentID      uint       `gorm:"primaryKey;column:document_id" json:"document_id"`
	KnowledgeBaseID uint       `gorm:"column:knowledge_base_id;not null;index" json:"knowledge_base_id"`
	Title           string     `gorm:"size:300;not null" json:"title"`
	Content         string     `gorm:"type:text" json:"content"` // 提取后的纯文本
	FileName        string     `gorm:"size:255" json:"file_name"`
	FileType        string     `gorm:"size:20" json:"file_type"`
	FileSize        int64      `json:"file_size"`
	ObjectKey       string     `gorm:"size:500;column:object_key" json:"object_key"` // MinIO对象路径
	Status          string     `gorm:"size:20;default:uploaded;not null" json:"status"`
	ChunkCount      int        `gorm:"default:0" json:"chunk_count"`
	UploaderID      uint       `gorm:"column:uploader_id;not null" json:"uploader_id"`
	CreateTime      time.Time  `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime      *time.Time `gorm:"column:update_time" json:"update_time"`

	KnowledgeBase KnowledgeBase `gorm:"foreignKey:KnowledgeBaseID" json:"-"`
}

func (Document) TableName() string {
	return "documents"
}
