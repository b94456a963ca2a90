package controllers

import (
	"net/http"
	"time"

	"github.com/trackhub/backend-go/internal/database"
)

// RootController 根控制器
type RootController struct {
	BaseController
}

// Index 服务标识
func (c *RootController) Index() {
	c.JSONSuccess(map[string]interface{}{
		"service": "trackhub-backend",
		"status":  "running",
	})
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
}

// Health 检查依赖组件连通性
func (c *HealthController) Health() {
	ctx := c.Ctx.Request.Context()
	checks := map[string]string{}
	healthy := true

	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["database"] = "down"
			healthy = false
		} else {
			checks["database"] = "up"
		}
	} else {
		checks["database"] = "uninitialized"
		healthy = false
	}

	if database.RedisClient != nil {
		if err := database.RedisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			healthy = false
		} else {
			checks["redis"] = "up"
		}
	} else {
		checks["redis"] = "uninitialized"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, map[string]interface{}{
		"success":   healthy,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
