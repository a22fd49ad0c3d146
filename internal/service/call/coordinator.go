// Package call 一对一音视频通话的信令协调
// 服务端只维护房间状态并转发 SDP / ICE，不解析媒体协商内容
package call

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/infrastructure/metric"
	"agrilink_server/internal/infrastructure/mq"
	"agrilink_server/internal/service/presence"
	"agrilink_server/pkg/constants"
	"agrilink_server/pkg/errorx"
	"agrilink_server/pkg/roomkey"

	"go.uber.org/zap"
)

// State 房间内的通话状态，不存在记录即空闲
type State int

const (
	StateRinging State = iota + 1
	StateActive
)

func (s State) String() string {
	switch s {
	case StateRinging:
		return "ringing"
	case StateActive:
		return "active"
	default:
		return "idle"
	}
}

// Actor 发起信令的已认证会话
type Actor struct {
	UserID    string
	SessionID string
}

// InitiateParams 发起通话参数，主叫为 Actor
type InitiateParams struct {
	ToUserId   string
	CallType   string
	Offer      json.RawMessage
	RoomId     string // 客户端指定的房间号，为空时由两人 ID 计算
	CallerName string
}

// Call 一个房间的通话记录
type Call struct {
	RoomId        string
	CallerId      string
	CalleeId      string
	CallType      string
	State         State
	CallerSession string // 发起通话的会话
	CalleeSession string // 接听通话的会话，接听前为空
	CreatedAt     time.Time
	AcceptedAt    time.Time

	timer *time.Timer
}

// HasParty 用户是否为通话一方
func (c *Call) HasParty(userID string) bool {
	return c.CallerId == userID || c.CalleeId == userID
}

// Peer 通话的另一方
func (c *Call) Peer(userID string) string {
	if c.CallerId == userID {
		return c.CalleeId
	}
	return c.CallerId
}

// Coordinator 通话状态机，所有状态修改在同一把锁内完成，推送在解锁后进行
type Coordinator struct {
	mu          sync.Mutex
	calls       map[string]*Call
	registry    *presence.Registry
	publisher   mq.EventPublisher
	ringTimeout time.Duration
	now         func() time.Time
}

// NewCoordinator 创建协调器并注册会话断开回调
// ringTimeout <= 0 时使用默认振铃超时
func NewCoordinator(registry *presence.Registry, publisher mq.EventPublisher, ringTimeout time.Duration) *Coordinator {
	if ringTimeout <= 0 {
		ringTimeout = constants.RING_TIMEOUT_SECONDS * time.Second
	}
	c := &Coordinator{
		calls:       make(map[string]*Call),
		registry:    registry,
		publisher:   publisher,
		ringTimeout: ringTimeout,
		now:         time.Now,
	}
	registry.OnRemove(c.HandleSessionRemoved)
	return c
}

// Lookup 返回房间通话的快照
func (c *Coordinator) Lookup(roomID string) (Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[roomID]
	if !ok {
		return Call{}, false
	}
	snapshot := *call
	snapshot.timer = nil
	return snapshot, true
}

// Initiate 发起通话：房间空闲时进入振铃并通知被叫的所有会话
func (c *Coordinator) Initiate(ctx context.Context, actor Actor, p InitiateParams) (string, error) {
	if actor.UserID == "" || p.ToUserId == "" {
		return "", errorx.New(errorx.CodeInvalidParam, "缺少主叫或被叫")
	}
	if actor.UserID == p.ToUserId {
		return "", errorx.New(errorx.CodeInvalidParam, "不能呼叫自己")
	}
	if p.CallType != event.CallAudio && p.CallType != event.CallVideo {
		return "", errorx.Newf(errorx.CodeInvalidParam, "不支持的通话类型 %q", p.CallType)
	}
	roomID := p.RoomId
	if roomID == "" {
		roomID = roomkey.Key(actor.UserID, p.ToUserId)
	}

	c.mu.Lock()
	if existing, ok := c.calls[roomID]; ok {
		c.mu.Unlock()
		zap.L().Info("call busy",
			zap.String("room_id", roomID),
			zap.String("caller", actor.UserID),
			zap.Stringer("state", existing.State))
		return "", errorx.ErrCallBusy
	}
	call := &Call{
		RoomId:        roomID,
		CallerId:      actor.UserID,
		CalleeId:      p.ToUserId,
		CallType:      p.CallType,
		State:         StateRinging,
		CallerSession: actor.SessionID,
		CreatedAt:     c.now(),
	}
	call.timer = time.AfterFunc(c.ringTimeout, func() { c.expire(roomID, call) })
	c.calls[roomID] = call
	metric.ActiveCalls.Inc()
	c.mu.Unlock()

	delivered := presence.Push(c.registry.SessionsForUser(p.ToUserId), &event.IncomingCall{
		FromUserId: actor.UserID,
		ToUserId:   p.ToUserId,
		CallType:   p.CallType,
		Offer:      p.Offer,
		RoomId:     roomID,
		CallerName: p.CallerName,
	})
	zap.L().Info("call ringing",
		zap.String("room_id", roomID),
		zap.String("caller", actor.UserID),
		zap.String("callee", p.ToUserId),
		zap.Int("delivered", delivered))
	return roomID, nil
}

// Accept 被叫接听，通话进入 Active，只通知主叫
func (c *Coordinator) Accept(ctx context.Context, actor Actor, roomID string, answer json.RawMessage) error {
	c.mu.Lock()
	call, ok := c.calls[roomID]
	if !ok || call.State != StateRinging {
		c.mu.Unlock()
		return errorx.ErrCallNotFound
	}
	if call.CalleeId != actor.UserID {
		c.mu.Unlock()
		return errorx.ErrForbidden
	}
	call.timer.Stop()
	call.State = StateActive
	call.CalleeSession = actor.SessionID
	call.AcceptedAt = c.now()
	callerID := call.CallerId
	payload := callPayload(call, "")
	c.mu.Unlock()

	presence.Push(c.registry.SessionsForUser(callerID), &event.CallAccepted{RoomId: roomID, Answer: answer})
	c.publisher.Publish(ctx, roomID, mq.NewEvent(mq.EventCallStarted, payload))
	return nil
}

// Reject 任一方拒绝或取消，通知另一方
func (c *Coordinator) Reject(ctx context.Context, actor Actor, roomID, reason string) error {
	call, err := c.finish(roomID, actor.UserID)
	if err != nil {
		return err
	}
	presence.Push(c.registry.SessionsForUser(call.Peer(actor.UserID)), &event.CallRejected{RoomId: roomID, Reason: reason})
	c.publishFinished(ctx, call, "rejected")
	return nil
}

// End 任一方挂断，双方所有会话都会收到 callEnded
func (c *Coordinator) End(ctx context.Context, actor Actor, roomID string) error {
	call, err := c.finish(roomID, actor.UserID)
	if err != nil {
		return err
	}
	evt := &event.CallEnded{RoomId: roomID, Reason: event.ReasonEnded}
	presence.Push(c.registry.SessionsForUser(call.CallerId), evt)
	presence.Push(c.registry.SessionsForUser(call.CalleeId), evt)
	c.publishFinished(ctx, call, event.ReasonEnded)
	return nil
}

// Relay 把不透明信令转发给另一方，不改变状态
func (c *Coordinator) Relay(ctx context.Context, actor Actor, roomID string, signal json.RawMessage) error {
	c.mu.Lock()
	call, ok := c.calls[roomID]
	if !ok {
		c.mu.Unlock()
		return errorx.ErrCallNotFound
	}
	if !call.HasParty(actor.UserID) {
		c.mu.Unlock()
		return errorx.ErrForbidden
	}
	peer := call.Peer(actor.UserID)
	c.mu.Unlock()

	presence.Push(c.registry.SessionsForUser(peer), &event.SignalRelayed{
		RoomId:     roomID,
		FromUserId: actor.UserID,
		Signal:     signal,
	})
	return nil
}

// HandleSessionRemoved 会话断开回调
// 断开的是通话绑定的会话，或该用户最后一个会话时结束通话并通知另一方
func (c *Coordinator) HandleSessionRemoved(sessionID, userID string) {
	// 同时断开的其他会话不算在线
	lastSession := !c.registry.HasLiveSessionExcept(userID, sessionID)

	c.mu.Lock()
	var ended []*Call
	for roomID, call := range c.calls {
		if !call.HasParty(userID) {
			continue
		}
		bound := (call.CallerId == userID && call.CallerSession == sessionID) ||
			(call.CalleeId == userID && call.CalleeSession == sessionID)
		if !bound && !lastSession {
			continue
		}
		c.removeLocked(roomID, call)
		ended = append(ended, call)
	}
	c.mu.Unlock()

	for _, call := range ended {
		peer := call.Peer(userID)
		presence.Push(c.registry.SessionsForUser(peer), &event.CallEnded{
			RoomId: call.RoomId,
			Reason: event.ReasonPeerDisconnected,
		})
		zap.L().Info("call ended by disconnect",
			zap.String("room_id", call.RoomId),
			zap.String("user_id", userID),
			zap.String("session_id", sessionID))
		c.publishFinished(context.Background(), call, event.ReasonPeerDisconnected)
	}
}

// expire 振铃超时，记录已被替换或已接听时忽略
func (c *Coordinator) expire(roomID string, call *Call) {
	c.mu.Lock()
	if current, ok := c.calls[roomID]; !ok || current != call || call.State != StateRinging {
		c.mu.Unlock()
		return
	}
	c.removeLocked(roomID, call)
	c.mu.Unlock()

	evt := &event.CallEnded{RoomId: roomID, Reason: event.ReasonNoAnswer}
	presence.Push(c.registry.SessionsForUser(call.CallerId), evt)
	presence.Push(c.registry.SessionsForUser(call.CalleeId), evt)
	zap.L().Info("call not answered", zap.String("room_id", roomID))
	c.publishFinished(context.Background(), call, event.ReasonNoAnswer)
}

// finish 校验参与方后删除记录
func (c *Coordinator) finish(roomID, userID string) (*Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[roomID]
	if !ok {
		return nil, errorx.ErrCallNotFound
	}
	if !call.HasParty(userID) {
		return nil, errorx.ErrForbidden
	}
	c.removeLocked(roomID, call)
	return call, nil
}

func (c *Coordinator) removeLocked(roomID string, call *Call) {
	if call.timer != nil {
		call.timer.Stop()
	}
	metric.ActiveCalls.Dec()
	delete(c.calls, roomID)
}

func (c *Coordinator) publishFinished(ctx context.Context, call *Call, reason string) {
	c.publisher.Publish(ctx, call.RoomId, mq.NewEvent(mq.EventCallFinished, callPayload(call, reason)))
}

func callPayload(call *Call, reason string) map[string]any {
	payload := map[string]any{
		"roomId":   call.RoomId,
		"callerId": call.CallerId,
		"calleeId": call.CalleeId,
		"callType": call.CallType,
		"state":    call.State.String(),
	}
	if !call.AcceptedAt.IsZero() {
		payload["acceptedAt"] = call.AcceptedAt
	}
	if reason != "" {
		payload["reason"] = reason
	}
	return payload
}
