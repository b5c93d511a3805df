package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inbox/backend/internal/domain"
)

// Metrics 监控指标
//
// 指标注册在独立的 Registry 上，同一进程内可创建多个实例（测试中常见）。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 会话指标
	SessionsOpened prometheus.Counter
	SessionsClosed *prometheus.CounterVec
	SessionsActive prometheus.Gauge

	// 邮件变更指标
	MessageMutations *prometheus.CounterVec

	// 推送指标
	FeedClients  prometheus.Gauge
	FeedsDropped prometheus.Counter

	// 错误与限流
	PanicsTotal     prometheus.Counter
	RateLimitBlocks prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		SessionsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "inbox_sessions_opened_total",
				Help: "Total number of sessions opened",
			},
		),

		SessionsClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inbox_sessions_closed_total",
				Help: "Total number of sessions closed, by reason",
			},
			[]string{"reason"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "inbox_sessions_active",
				Help: "Number of active sessions",
			},
		),

		MessageMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inbox_message_mutations_total",
				Help: "Total number of message store mutations, by operation and outcome",
			},
			[]string{"op", "outcome"},
		),

		FeedClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "inbox_feed_clients",
				Help: "Number of connected change feed clients",
			},
		),

		FeedsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "inbox_feed_messages_dropped_total",
				Help: "Change feed messages dropped because a client was too slow",
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "inbox_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "inbox_rate_limit_blocks_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSessionOpened 记录会话创建
func (m *Metrics) RecordSessionOpened() {
	m.SessionsOpened.Inc()
}

// RecordSessionClosed 记录会话结束，reason 为 closed 或 expired
func (m *Metrics) RecordSessionClosed(reason string, count int) {
	m.SessionsClosed.WithLabelValues(reason).Add(float64(count))
}

// UpdateSessionsActive 更新活跃会话数
func (m *Metrics) UpdateSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// RecordMutation 记录一次邮件变更，matched 为 false 表示未命中（no-op）
func (m *Metrics) RecordMutation(op domain.ChangeOp, matched bool) {
	outcome := "applied"
	if !matched {
		outcome = "noop"
	}
	m.MessageMutations.WithLabelValues(string(op), outcome).Inc()
}

// UpdateFeedClients 更新推送连接数
func (m *Metrics) UpdateFeedClients(count int) {
	m.FeedClients.Set(float64(count))
}

// RecordFeedDropped 记录丢弃的推送
func (m *Metrics) RecordFeedDropped() {
	m.FeedsDropped.Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拒绝
func (m *Metrics) RecordRateLimitBlock() {
	m.RateLimitBlocks.Inc()
}

// HTTPHandler 返回 /metrics 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
