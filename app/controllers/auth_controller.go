package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/trackhub/backend-go/internal/auth"
	"github.com/trackhub/backend-go/internal/services"
)

// AuthController 认证控制器
type AuthController struct {
	BaseController
	userService *services.UserService
}

// NewAuthController 创建认证控制器
func NewAuthController(userService *services.UserService) *AuthController {
	return &AuthController{userService: userService}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 注册
func (c *AuthController) Register() {
	var req services.RegisterRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := c.userService.Register(c.Ctx.Request.Context(), req)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONCreated(user)
}

// Login 登录，返回JWT
func (c *AuthController) Login() {
	var req loginRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	userAgent := c.Ctx.Input.Header("User-Agent")
	result, err := c.userService.Login(c.Ctx.Request.Context(), req.Username, req.Password, userAgent, c.clientIP())
	if err != nil {
		c.handleServiceError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"token": result.Token,
		"user":  result.User,
	})
}

// Logout 登出，token进黑名单
func (c *AuthController) Logout() {
	token, err := auth.ExtractTokenFromHeader(c.Ctx.Input.Header("Authorization"))
	if err != nil {
		c.JSONError(http.StatusUnauthorized, "missing authorization header")
		return
	}

	if err := c.userService.Logout(c.Ctx.Request.Context(), token); err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "logged out"})
}

// Me 当前用户信息
func (c *AuthController) Me() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	user, err := c.userService.GetUser(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(user)
}

// ChangePassword 修改密码
func (c *AuthController) ChangePassword() {
	userID, ok := c.authenticatedUserID()
	if !ok {
		return
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.userService.ChangePassword(c.Ctx.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "password changed"})
}

func (c *AuthController) clientIP() string {
	if forwarded := c.Ctx.Input.Header("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := c.Ctx.Input.Header("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.Ctx.Input.IP()
}
