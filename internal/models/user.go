package models

import (
	"time"
)

// User 用户表
type User struct {
	UserID       uint       `gorm:"primaryKey;column:user_id" json:"user_id"`
	Username     string     `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:200;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role         string     `gorm:"size:20;default:user;not null" json:"role"` // user/admin
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	CreateTime   time.Time  `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime   *time.Time `gorm:"column:update_time" json:"update_time"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at" json:"last_login_at"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin 判断是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
