package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"agrilink_server/internal/dto/event"
	"agrilink_server/pkg/errorx"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Session 一条已认证的 websocket 连接
// 上行事件在读协程中串行处理，下行事件经缓冲通道由写协程发送
type Session struct {
	id      string
	userID  string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	opts    Options

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, userID string, opts Options) *Session {
	return &Session{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		send:    make(chan []byte, opts.SendBufferSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.EventsPerSecond), opts.EventBurst),
		opts:    opts,
	}
}

// ID 会话 ID，每次连接重新生成
func (s *Session) ID() string { return s.id }

// UserID 握手时认证的用户
func (s *Session) UserID() string { return s.userID }

// Deliver 编码后放入发送缓冲，缓冲已满或会话已关闭时丢弃
func (s *Session) Deliver(evt event.Outbound) bool {
	data, err := event.Encode(evt)
	if err != nil {
		zap.L().Error("encode outbound event failed", zap.String("event", evt.EventName()), zap.Error(err))
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// Close 关闭连接，读写协程随之退出
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.done)
		s.mu.Unlock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = s.conn.Close()
	})
}

// readLoop 读取并处理上行事件，连接出错或关闭时返回
func (s *Session) readLoop(ctx context.Context, d Dispatcher) {
	s.conn.SetReadLimit(s.opts.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.pongWait()))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.pongWait()))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				zap.L().Warn("ws read error", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
		if !s.limiter.Allow() {
			s.replyError("", errorx.ErrTooManyRequests)
			continue
		}
		name, in, err := event.Decode(raw)
		if err != nil {
			s.replyError(name, err)
			continue
		}
		if err := d.HandleEvent(ctx, s, in); err != nil {
			s.replyError(name, err)
		}
	}
}

// writeLoop 发送缓冲中的事件并定时 ping
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				zap.L().Debug("ws write error", zap.String("session_id", s.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// replyError 错误只回给当前会话
func (s *Session) replyError(eventName string, err error) {
	var codeErr *errorx.CodeError
	if !errors.As(err, &codeErr) {
		zap.L().Error("ws event failed", zap.String("session_id", s.id), zap.String("event", eventName), zap.Error(err))
		codeErr = errorx.ErrServerBusy
	}
	s.Deliver(&event.Error{Code: codeErr.Code, Msg: codeErr.Msg, Event: eventName})
}
