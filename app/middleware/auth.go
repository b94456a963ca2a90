package middleware

import (
	"net/http"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/trackhub/backend-go/internal/auth"
	"github.com/trackhub/backend-go/internal/logger"
	"github.com/trackhub/backend-go/internal/services"
	"go.uber.org/zap"
)

const (
	// CtxUserID 认证通过后写入请求context的用户ID键
	CtxUserID = "auth_user_id"
	// CtxUsername 认证通过后写入请求context的用户名键
	CtxUsername = "auth_username"
	// CtxRoles 认证通过后写入请求context的角色键
	CtxRoles = "auth_roles"
)

// AuthMiddleware JWT认证过滤器
// 验签后检查JTI黑名单，通过则把用户信息挂到请求上
type AuthMiddleware struct {
	jwtService *auth.JWTService
	sessions   *services.SessionService
}

// NewAuthMiddleware 创建认证过滤器
func NewAuthMiddleware(jwtService *auth.JWTService, sessions *services.SessionService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		sessions:   sessions,
	}
}

// Filter beego BeforeRouter过滤器入口
func (m *AuthMiddleware) Filter(ctx *context.Context) {
	token, err := auth.ExtractTokenFromHeader(ctx.Input.Header("Authorization"))
	if err != nil {
		unauthorized(ctx, "missing or malformed authorization header")
		return
	}

	claims, err := m.jwtService.ValidateToken(token)
	if err != nil {
		unauthorized(ctx, "invalid or expired token")
		return
	}

	if m.sessions != nil && m.sessions.IsTokenBlacklisted(ctx.Request.Context(), claims.ID) {
		logger.Warn("blacklisted token rejected",
			zap.Uint("user_id", claims.UserID),
			zap.String("jti", claims.ID))
		unauthorized(ctx, "token has been revoked")
		return
	}

	ctx.Input.SetData(CtxUserID, claims.UserID)
	ctx.Input.SetData(CtxUsername, claims.Username)
	ctx.Input.SetData(CtxRoles, claims.Roles)
}

func unauthorized(ctx *context.Context, message string) {
	ctx.Output.SetStatus(http.StatusUnauthorized)
	ctx.Output.JSON(map[string]interface{}{
		"success": false,
		"error":   message,
	}, false, false)
}
