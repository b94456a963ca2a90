package models

import (
	"time"
)

// 工作区成员角色
const (
	WorkspaceRoleOwner  = "owner"
	WorkspaceRoleAdmin  = "admin"
	WorkspaceRoleMember = "member"
)

// Workspace 工作区表（多租户边界）
type Workspace struct {
	WorkspaceID uint       `gorm:"primaryKey;column:workspace_id" json:"workspace_id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Slug        string     `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	OwnerID     uint       `gorm:"column:owner_id;not null;index" json:"owner_id"`
	CreateTime  time.Time  `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime  *time.Time `gorm:"column:update_time" json:"update_time"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

// WorkspaceMember 工作区成员表
type WorkspaceMember struct {
	MemberID    uint      `gorm:"primaryKey;column:member_id" json:"member_id"`
	WorkspaceID uint      `gorm:"column:workspace_id;not null;uniqueIndex:idx_workspace_user" json:"workspace_id"`
	UserID      uint      `gorm:"column:user_id;not null;uniqueIndex:idx_workspace_user" json:"user_id"`
	Role        string    `gorm:"size:20;default:member;not null" json:"role"` // owner/admin/member
	JoinTime    time.Time `gorm:"column:join_time;not null" json:"join_time"`

	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"-"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

func (WorkspaceMember) TableName() string {
	return "workspace_members"
}

// CanManage 判断成员是否可管理工作区
func (m *WorkspaceMember) CanManage() bool {
	return m.Role == WorkspaceRoleOwner || m.Role == WorkspaceRoleAdmin
}
