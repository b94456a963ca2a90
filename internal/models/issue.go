package models

import (
	"time"
)

// 议题可见性
const (
	VisibilityPublic    = "public"
	VisibilityWorkspace = "workspace"
	VisibilityPrivate   = "private"
)

// 议题状态
const (
	IssueStatusOpen       = "open"
	IssueStatusInProgress = "in_progress"
	IssueStatusResolved   = "resolved"
	IssueStatusClosed     = "closed"
)

// Issue 议题表（数据库检索源的数据载体）
type Issue struct {
	IssueID      uint       `gorm:"primaryKey;column:issue_id" json:"issue_id"`
	WorkspaceID  uint       `gorm:"column:workspace_id;not null;index" json:"workspace_id"`
	Title        string     `gorm:"size:300;not null;index" json:"title"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	Category     string     `gorm:"size:50;index" json:"category"`
	Status       string     `gorm:"size:20;default:open;not null;index" json:"status"`
	Priority     string     `gorm:"size:20;default:medium" json:"priority"` // low/medium/high/urgent
	Visibility   string     `gorm:"size:20;default:workspace;not null;index" json:"visibility"`
	AuthorID     uint       `gorm:"column:author_id;not null;index" json:"author_id"`
	AssigneeID   *uint      `gorm:"column:assignee_id" json:"assignee_id"`
	TemplateID   *uint      `gorm:"column:template_id" json:"template_id"`
	CustomFields string     `gorm:"type:json;column:custom_fields" json:"custom_fields"` // 模板渲染出的动态字段
	CreateTime   time.Time  `gorm:"column:create_time;not null;index" json:"create_time"`
	UpdateTime   *time.Time `gorm:"column:update_time" json:"update_time"`

	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"-"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"-"`
}

func (Issue) TableName() string {
	return "issues"
}
