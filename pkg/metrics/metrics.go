package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/crmkit/genwatch/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry      *prometheus.Registry
	namespace     string
	httpReqCnt    *prometheus.CounterVec
	httpDur       *prometheus.HistogramVec
	connOpenCnt   prometheus.Counter
	connCloseCnt  prometheus.Counter
	reconnectCnt  prometheus.Counter
	heartbeatCnt  prometheus.Counter
	eventCnt      *prometheus.CounterVec
	broadcastCnt  *prometheus.CounterVec
	droppedMsgCnt prometheus.Counter
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	if ns == "" {
		ns = "genwatch"
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	r.MustRegister(httpReqCnt, httpDur)

	connOpenCnt := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "ws_opens_total"})
	connCloseCnt := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "ws_closes_total"})
	reconnectCnt := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "ws_reconnect_attempts_total"})
	heartbeatCnt := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "ws_heartbeats_total"})
	droppedMsgCnt := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "ws_dropped_messages_total"})
	r.MustRegister(connOpenCnt, connCloseCnt, reconnectCnt, heartbeatCnt, droppedMsgCnt)

	eventCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "events_dispatched_total"}, []string{"type"})
	broadcastCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "broadcast_messages_total"}, []string{"direction"})
	r.MustRegister(eventCnt, broadcastCnt)

	return &Metrics{
		registry:      r,
		namespace:     ns,
		httpReqCnt:    httpReqCnt,
		httpDur:       httpDur,
		connOpenCnt:   connOpenCnt,
		connCloseCnt:  connCloseCnt,
		reconnectCnt:  reconnectCnt,
		heartbeatCnt:  heartbeatCnt,
		eventCnt:      eventCnt,
		broadcastCnt:  broadcastCnt,
		droppedMsgCnt: droppedMsgCnt,
	}
}

// Nil-safe recording helpers so components can run without a registry.

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connOpenCnt.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connCloseCnt.Inc()
}

func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectCnt.Inc()
}

func (m *Metrics) HeartbeatSent() {
	if m == nil {
		return
	}
	m.heartbeatCnt.Inc()
}

func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.droppedMsgCnt.Inc()
}

func (m *Metrics) EventDispatched(eventType string) {
	if m == nil {
		return
	}
	m.eventCnt.WithLabelValues(eventType).Inc()
}

func (m *Metrics) BroadcastSent() {
	if m == nil {
		return
	}
	m.broadcastCnt.WithLabelValues("out").Inc()
}

func (m *Metrics) BroadcastReceived() {
	if m == nil {
		return
	}
	m.broadcastCnt.WithLabelValues("in").Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
