package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/trackhub/backend-go/internal/metrics"
)

// TestMetricsMiddleware_CountsByStatus 按路径、方法、状态码累计请求数
func TestMetricsMiddleware_CountsByStatus(t *testing.T) {
	ctx := context.NewContext()
	ctx.Reset(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	ctx.ResponseWriter.WriteHeader(404)

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("/health", "GET", "404"))
	MetricsMiddleware(ctx)
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("/health", "GET", "404"))

	assert.Equal(t, before+1, after)
}

// TestMetricsMiddleware_DefaultStatus 未显式写状态码时按200计数
func TestMetricsMiddleware_DefaultStatus(t *testing.T) {
	ctx := context.NewContext()
	ctx.Reset(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/search", nil))

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("/api/search", "POST", "200"))
	MetricsMiddleware(ctx)
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("/api/search", "POST", "200"))

	assert.Equal(t, before+1, after)
}
