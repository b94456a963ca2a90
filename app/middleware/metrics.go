package middleware

import (
	"strconv"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/trackhub/backend-go/internal/metrics"
)

// MetricsMiddleware 请求计数过滤器，路由结束后按路径、方法、状态码累计
func MetricsMiddleware(ctx *context.Context) {
	status := ctx.ResponseWriter.Status
	if status == 0 {
		// 未显式写状态码时net/http默认返回200
		status = 200
	}
	metrics.HTTPRequestsTotal.WithLabelValues(ctx.Input.URL(), ctx.Input.Method(), strconv.Itoa(status)).Inc()
}
