package controllers

import (
	"net/http"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"github.com/trackhub/backend-go/app/middleware"
	apperrors "github.com/trackhub/backend-go/internal/errors"
	"github.com/trackhub/backend-go/internal/logger"
	"go.uber.org/zap"
)

// BaseController 提供统一的JSON响应封装
type BaseController struct {
	web.Controller
}

// JSON 按状态码输出JSON
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess 成功响应信封
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONCreated 创建成功响应
func (c *BaseController) JSONCreated(data interface{}) {
	c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError 错误响应信封
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// handleServiceError 按错误类型映射HTTP状态码
func (c *BaseController) handleServiceError(err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		status := appErr.HTTPCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.Ctx.Request.RequestURI),
				zap.String("code", string(appErr.Code)),
				zap.Error(err))
		}
		c.JSON(status, map[string]interface{}{
			"success": false,
			"error":   appErr.Message,
			"code":    appErr.Code,
		})
		return
	}

	logger.Error("unexpected error",
		zap.String("path", c.Ctx.Request.RequestURI),
		zap.Error(err))
	c.JSONError(http.StatusInternalServerError, "internal server error")
}

// authenticatedUserID 取认证中间件写入的用户ID
func (c *BaseController) authenticatedUserID() (uint, bool) {
	if userID, ok := c.Ctx.Input.GetData(middleware.CtxUserID).(uint); ok && userID != 0 {
		return userID, true
	}
	c.JSONError(http.StatusUnauthorized, "authentication required")
	return 0, false
}

// uintParam 解析路径参数为uint
func (c *BaseController) uintParam(name string) (uint, bool) {
	raw := c.Ctx.Input.Param(name)
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || value == 0 {
		c.JSONError(http.StatusBadRequest, "invalid path parameter: "+name)
		return 0, false
	}
	return uint(value), true
}
