package models

import (
	"time"
)

// IssueTemplate 议题模板表
// Fields 保存字段定义JSON，创建议题时渲染为custom_fields
type IssueTemplate struct {
	TemplateID  uint       `gorm:"primaryKey;column:template_id" json:"template_id"`
	WorkspaceID uint       `gorm:"column:workspace_id;not null;index" json:"workspace_id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Category    string     `gorm:"size:50" json:"category"`
	Fields      string     `gorm:"type:json;not null" json:"fields"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	CreatorID   uint       `gorm:"column:creator_id;not null" json:"creator_id"`
	CreateTime  time.Time  `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime  *time.Time `gorm:"column:update_time" json:"update_time"`

	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"-"`
}

func (IssueTemplate) TableName() string {
	return "issue_templates"
}

// TemplateField 模板字段定义（Fields列的JSON元素）
type TemplateField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // text/number/select/date/checkbox
	Required bool     `json:"required"`
	Default  string   `json:"default,omitempty"`
	Options  []string `json:"options,omitempty"` // select类型的候选值
}
