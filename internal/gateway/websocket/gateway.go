// Package websocket 实时通道的传输层
// 负责握手、帧读写、心跳和限流，业务事件交给 Dispatcher 处理
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"agrilink_server/internal/config"
	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/service/chat"
	"agrilink_server/pkg/constants"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Dispatcher 会话生命周期与事件处理，由 chat.Server 实现
type Dispatcher interface {
	Connect(sess chat.Session) bool
	Disconnect(sessionID string)
	HandleEvent(ctx context.Context, sess chat.Session, in event.Inbound) error
}

// Options 连接参数
type Options struct {
	SendBufferSize  int
	EventsPerSecond float64
	EventBurst      int
	MaxMessageBytes int64
	PingPeriod      time.Duration
	AllowedOrigins  []string
}

// pongWait 读超时略长于 ping 间隔
func (o Options) pongWait() time.Duration {
	return o.PingPeriod * 10 / 9
}

// OptionsFromConfig 由实时通道配置生成连接参数
func OptionsFromConfig(rt config.RealtimeConfig) Options {
	return Options{
		SendBufferSize:  rt.SendBufferSize,
		EventsPerSecond: rt.EventsPerSecond,
		EventBurst:      rt.EventBurst,
		MaxMessageBytes: rt.MaxMessageBytes,
		PingPeriod:      time.Duration(rt.PingPeriodSeconds) * time.Second,
		AllowedOrigins:  rt.AllowedOrigins,
	}
}

// Gateway websocket 入口
type Gateway struct {
	upgrader   websocket.Upgrader
	dispatcher Dispatcher
	opts       Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func (o *Options) applyDefaults() {
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = constants.CHANNEL_SIZE
	}
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = 20
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 40
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 * 1024
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
}

// NewGateway 创建网关
func NewGateway(d Dispatcher, opts Options) *Gateway {
	opts.applyDefaults()
	g := &Gateway{
		dispatcher: d,
		opts:       opts,
		sessions:   make(map[string]*Session),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// checkOrigin 未配置白名单时允许任意来源
func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Serve 升级连接并阻塞直到会话结束
// userID 必须已由认证中间件解析
func (g *Gateway) Serve(c *gin.Context, userID string) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写回 HTTP 错误
		zap.L().Warn("ws upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	sess := newSession(conn, userID, g.opts)
	if !g.dispatcher.Connect(sess) {
		_ = conn.Close()
		return
	}
	g.track(sess)

	go sess.writeLoop()
	sess.readLoop(context.Background(), g.dispatcher)

	sess.Close()
	g.untrack(sess)
	g.dispatcher.Disconnect(sess.ID())
}

func (g *Gateway) track(sess *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[sess.ID()] = sess
}

func (g *Gateway) untrack(sess *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, sess.ID())
}

// CloseAll 关闭所有连接，用于优雅退出
func (g *Gateway) CloseAll() {
	g.mu.Lock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	zap.L().Info("ws sessions closed", zap.Int("count", len(sessions)))
}
