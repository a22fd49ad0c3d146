// Package chat 实时通道的事件分发
// 传输层把解码后的上行事件交给 Server.HandleEvent，由这里完成身份校验并路由到消息、通知、通话服务
package chat

import (
	"context"
	"strconv"

	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/infrastructure/metric"
	"agrilink_server/internal/service/call"
	"agrilink_server/internal/service/message"
	"agrilink_server/internal/service/notification"
	"agrilink_server/internal/service/presence"
	"agrilink_server/pkg/errorx"
	"agrilink_server/pkg/roomkey"

	"go.uber.org/zap"
)

// Session 已认证的传输会话
type Session interface {
	presence.Sink
	// UserID 握手时由 JWT 解析出的用户
	UserID() string
}

// Server 聊天服务器聚合结构
type Server struct {
	registry      *presence.Registry
	messages      *message.Service
	notifications *notification.Service
	calls         *call.Coordinator
}

// NewServer 创建聊天服务器，registry 必须与各服务共用同一实例
func NewServer(registry *presence.Registry, messages *message.Service, notifications *notification.Service, calls *call.Coordinator) *Server {
	return &Server{
		registry:      registry,
		messages:      messages,
		notifications: notifications,
		calls:         calls,
	}
}

// Registry 在线登记表
func (s *Server) Registry() *presence.Registry {
	return s.registry
}

// Connect 握手成功后立即登记，此后即可收到通知和来电
func (s *Server) Connect(sess Session) bool {
	ok := s.registry.RegisterSession(sess, sess.UserID())
	if ok {
		zap.L().Info("ws session connected",
			zap.String("session_id", sess.ID()),
			zap.String("user_id", sess.UserID()),
			zap.Int("sessions", s.registry.Count()))
	}
	return ok
}

// Disconnect 移除会话，触发通话清理等回调；重复调用无副作用
func (s *Server) Disconnect(sessionID string) {
	if s.registry.RemoveSession(sessionID) {
		zap.L().Info("ws session disconnected",
			zap.String("session_id", sessionID),
			zap.Int("sessions", s.registry.Count()))
	}
}

// HandleEvent 处理一条上行事件
// 同一会话的事件由传输层串行调用，返回的错误由传输层转成 error 事件发回该会话
func (s *Server) HandleEvent(ctx context.Context, sess Session, in event.Inbound) (err error) {
	if in == nil {
		return errorx.ErrInvalidParam
	}
	name := in.EventName()
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("[Recovery from event panic]",
				zap.String("event", name),
				zap.String("session_id", sess.ID()),
				zap.Any("error", rec))
			err = errorx.ErrServerBusy
		}
		result := "ok"
		if err != nil {
			result = strconv.Itoa(errorx.GetCode(err))
		}
		metric.EventsTotal.WithLabelValues(name, result).Inc()
	}()

	owner := sess.UserID()
	actor := call.Actor{UserID: owner, SessionID: sess.ID()}

	switch e := in.(type) {
	case *event.JoinUser:
		// 连接时已登记，这里只校验身份
		return checkOwner(owner, e.UserId)

	case *event.JoinChat:
		if err := checkOwner(owner, e.UserId); err != nil {
			return err
		}
		if e.TargetUserId == owner {
			return errorx.New(errorx.CodeInvalidParam, "不能与自己聊天")
		}
		if !s.registry.JoinRoom(sess.ID(), roomkey.Key(owner, e.TargetUserId)) {
			return errorx.New(errorx.CodeNotFound, "会话已断开")
		}
		return nil

	case *event.SendMessage:
		if err := checkOwner(owner, e.UserId); err != nil {
			return err
		}
		_, err := s.messages.SendMessage(ctx, message.SendMessageParams{
			From:       owner,
			To:         e.TargetUserId,
			SenderName: e.FirstName,
			Text:       e.Text,
		})
		return err

	case *event.SendFriendRequest:
		if err := checkOwner(owner, e.FromUserId); err != nil {
			return err
		}
		_, err := s.notifications.FriendRequest(ctx, owner, e.ToUserId, e.FromUserName)
		return err

	case *event.SendLikeNotification:
		if err := checkOwner(owner, e.FromUserId); err != nil {
			return err
		}
		_, err := s.notifications.Like(ctx, owner, e.ToUserId, e.FromUserName, e.PostId)
		return err

	case *event.InitiateCall:
		if err := checkOwner(owner, e.FromUserId); err != nil {
			return err
		}
		_, err := s.calls.Initiate(ctx, actor, call.InitiateParams{
			ToUserId:   e.ToUserId,
			CallType:   e.CallType,
			Offer:      e.Offer,
			RoomId:     e.RoomId,
			CallerName: e.CallerName,
		})
		return err

	case *event.AcceptCall:
		return s.calls.Accept(ctx, actor, e.RoomId, e.Answer)

	case *event.RejectCall:
		return s.calls.Reject(ctx, actor, e.RoomId, e.Reason)

	case *event.EndCall:
		return s.calls.End(ctx, actor, e.RoomId)

	case *event.RelaySignal:
		return s.calls.Relay(ctx, actor, e.RoomId, e.Signal)

	default:
		return errorx.Newf(errorx.CodeInvalidParam, "未知事件 %q", name)
	}
}

// checkOwner 事件声明的用户必须是会话所有者
func checkOwner(owner, claimed string) error {
	if claimed != owner {
		zap.L().Warn("event identity mismatch", zap.String("owner", owner), zap.String("claimed", claimed))
		return errorx.ErrForbidden
	}
	return nil
}
