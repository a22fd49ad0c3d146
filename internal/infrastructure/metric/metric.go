// Package metric 实时通道的 Prometheus 指标
package metric

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveSessions 当前在线的 websocket 会话数
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agrilink_ws_active_sessions",
		Help: "Active websocket sessions",
	})

	// EventsTotal 入站事件处理结果
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agrilink_ws_events_total",
		Help: "Inbound websocket events by type and result",
	}, []string{"event", "result"})

	// PushesDropped 因会话缓冲已满或已关闭而丢弃的推送
	PushesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agrilink_ws_pushes_dropped_total",
		Help: "Outbound pushes dropped because the session was full or closed",
	})

	// ActiveCalls 处于振铃或通话中的房间数
	ActiveCalls = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agrilink_active_calls",
		Help: "Call rooms currently ringing or active",
	})
)

var registerOnce sync.Once

// Init 注册所有指标，重复调用无副作用
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ActiveSessions, EventsTotal, PushesDropped, ActiveCalls)
	})
}

// Handler 暴露 /metrics
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
