package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 检索相关指标，注册到默认Registry，由/metrics端点暴露
var (
	SearchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackhub_search_requests_total",
		Help: "Total search requests, labelled by outcome",
	}, []string{"outcome"}) // hit / miss / error

	SearchSourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackhub_search_source_failures_total",
		Help: "Per-source fetch failures absorbed during fan-out",
	}, []string{"source"})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trackhub_search_duration_seconds",
		Help:    "End to end search latency including fan-out",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackhub_http_requests_total",
		Help: "Total HTTP requests by path and status",
	}, []string{"path", "method", "status"})

	DocumentIndexTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackhub_document_index_total",
		Help: "Document indexing operations by outcome",
	}, []string{"outcome"}) // indexed / failed
)
