package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionService(t *testing.T) (*SessionService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionService(client), mr
}

// TestSessionService_CreateAndGet 创建后可读回
func TestSessionService_CreateAndGet(t *testing.T) {
	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, 1, "alice", "alice@example.com", "user", "ua", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionID)

	got, err := svc.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.UserID)
	assert.Equal(t, "alice", got.Username)
}

// TestSessionService_Delete 删除后不可读
func TestSessionService_Delete(t *testing.T) {
	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, 1, "alice", "a@e.com", "user", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(ctx, session.SessionID))

	_, err = svc.GetSession(ctx, session.SessionID)
	assert.Error(t, err)
}

// TestSessionService_DeleteUserSessions 按用户批量失效
func TestSessionService_DeleteUserSessions(t *testing.T) {
	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	s1, err := svc.CreateSession(ctx, 7, "bob", "b@e.com", "user", "", "")
	require.NoError(t, err)
	s2, err := svc.CreateSession(ctx, 7, "bob", "b@e.com", "user", "", "")
	require.NoError(t, err)
	other, err := svc.CreateSession(ctx, 8, "carol", "c@e.com", "user", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUserSessions(ctx, 7))

	_, err = svc.GetSession(ctx, s1.SessionID)
	assert.Error(t, err)
	_, err = svc.GetSession(ctx, s2.SessionID)
	assert.Error(t, err)

	// 其他用户的会话不受影响
	_, err = svc.GetSession(ctx, other.SessionID)
	assert.NoError(t, err)
}

// TestSessionService_TTLExpiry 会话按TTL过期
func TestSessionService_TTLExpiry(t *testing.T) {
	svc, mr := newTestSessionService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, 1, "alice", "a@e.com", "user", "", "")
	require.NoError(t, err)

	mr.FastForward(sessionTTL + time.Minute)

	_, err = svc.GetSession(ctx, session.SessionID)
	assert.Error(t, err)
}

// TestSessionService_TokenBlacklist 登出拉黑JTI
func TestSessionService_TokenBlacklist(t *testing.T) {
	svc, mr := newTestSessionService(t)
	ctx := context.Background()

	jti := "token-jti-1"
	assert.False(t, svc.IsTokenBlacklisted(ctx, jti))

	require.NoError(t, svc.BlacklistToken(ctx, jti, time.Now().Add(time.Hour)))
	assert.True(t, svc.IsTokenBlacklisted(ctx, jti))

	// 黑名单条目随token自然过期
	mr.FastForward(2 * time.Hour)
	assert.False(t, svc.IsTokenBlacklisted(ctx, jti))
}

// TestSessionService_BlacklistExpiredToken 已过期token无需拉黑
func TestSessionService_BlacklistExpiredToken(t *testing.T) {
	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	require.NoError(t, svc.BlacklistToken(ctx, "old", time.Now().Add(-time.Minute)))
	assert.False(t, svc.IsTokenBlacklisted(ctx, "old"))
}
