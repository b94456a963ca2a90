package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix   = "session:"
	blacklistPrefix = "token:blacklist:"
	sessionTTL      = 7 * 24 * time.Hour
)

// Session 用户会话信息
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	LoginTime time.Time `json:"login_time"`
	ExpiresAt time.Time `json:"expires_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
}

// SessionService 会话服务
// 会话存Redis固定TTL；登出时token的JTI进黑名单直到其自然过期
type SessionService struct {
	redis *redis.Client
}

// NewSessionService 创建会话服务
func NewSessionService(client *redis.Client) *SessionService {
	return &SessionService{redis: client}
}

// CreateSession 创建会话并存储到Redis
func (s *SessionService) CreateSession(ctx context.Context, userID uint, username, email, role, userAgent, clientIP string) (*Session, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("redis not initialized")
	}

	sessionID := uuid.NewString()
	now := time.Now()

	session := &Session{
		SessionID: sessionID,
		UserID:    userID,
		Username:  username,
		Email:     email,
		Role:      role,
		LoginTime: now,
		ExpiresAt: now.Add(sessionTTL),
		UserAgent: userAgent,
		ClientIP:  clientIP,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session failed: %w", err)
	}

	if err := s.redis.Set(ctx, sessionKey(sessionID), data, sessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("store session failed: %w", err)
	}

	// 用户到session的映射，便于按用户批量失效
	if err := s.redis.Set(ctx, userSessionKey(userID, sessionID), sessionID, sessionTTL).Err(); err != nil {
		_ = err
	}

	return session, nil
}

// GetSession 从Redis获取会话
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("redis not initialized")
	}

	raw, err := s.redis.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("session not found or expired")
	}
	if err != nil {
		return nil, fmt.Errorf("get session failed: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		s.redis.Del(ctx, sessionKey(sessionID))
		return nil, fmt.Errorf("session expired")
	}

	return &session, nil
}

// DeleteSession 删除会话
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}

	session, err := s.GetSession(ctx, sessionID)
	if err == nil && session != nil {
		s.redis.Del(ctx, userSessionKey(session.UserID, sessionID))
	}

	return s.redis.Del(ctx, sessionKey(sessionID)).Err()
}

// DeleteUserSessions 删除用户的所有会话
func (s *SessionService) DeleteUserSessions(ctx context.Context, userID uint) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}

	pattern := fmt.Sprintf("user:session:%d:*", userID)
	var cursor uint64

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scan user sessions failed: %w", err)
		}

		for _, key := range keys {
			sessionID, err := s.redis.Get(ctx, key).Result()
			if err == nil && sessionID != "" {
				s.redis.Del(ctx, sessionKey(sessionID))
			}
			s.redis.Del(ctx, key)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return nil
}

// BlacklistToken 将token的JTI拉黑直到其过期时间
// 登出后同一token立即不可用，即便签名仍然有效
func (s *SessionService) BlacklistToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if jti == "" {
		return fmt.Errorf("token has no jti")
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// 已过期的token无需拉黑
		return nil
	}

	return s.redis.Set(ctx, blacklistKey(jti), "1", ttl).Err()
}

// IsTokenBlacklisted 检查token是否已拉黑
// Redis不可用时放行：黑名单是尽力而为的防御，不能让登录整体不可用
func (s *SessionService) IsTokenBlacklisted(ctx context.Context, jti string) bool {
	if s.redis == nil || jti == "" {
		return false
	}

	exists, err := s.redis.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

func sessionKey(sessionID string) string {
	return sessionPrefix + sessionID
}

func userSessionKey(userID uint, sessionID string) string {
	return fmt.Sprintf("user:session:%d:%s", userID, sessionID)
}

func blacklistKey(jti string) string {
	return blacklistPrefix + jti
}
