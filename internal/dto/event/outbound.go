package event

import (
	"encoding/json"

	"agrilink_server/internal/dto/respond"
)

// 下行事件名
const (
	TypeMessageReceived = "messageReceived"
	TypeNewNotification = "newNotification"
	TypeIncomingCall    = "incomingCall"
	TypeCallAccepted    = "callAccepted"
	TypeCallRejected    = "callRejected"
	TypeCallEnded       = "callEnded"
	TypeSignalRelayed   = "signalRelayed"
	TypeError           = "error"
)

// callEnded 的原因
const (
	ReasonEnded            = "ended"
	ReasonPeerDisconnected = "peer_disconnected"
	ReasonNoAnswer         = "no_answer"
)

// Outbound 服务端推送给会话的事件
type Outbound interface {
	EventName() string
	outbound()
}

// MessageReceived 房间内的新消息，发送者的其他设备也会收到
type MessageReceived struct {
	respond.MessageRespond
	RoomId string `json:"roomId"`
}

// NewNotification 推送给接收者每个会话的通知
type NewNotification struct {
	respond.NotificationRespond
}

type IncomingCall struct {
	FromUserId string          `json:"fromUserId"`
	ToUserId   string          `json:"toUserId"`
	CallType   string          `json:"callType"`
	Offer      json.RawMessage `json:"offer"`
	RoomId     string          `json:"roomId"`
	CallerName string          `json:"callerName,omitempty"`
}

type CallAccepted struct {
	RoomId string          `json:"roomId"`
	Answer json.RawMessage `json:"answer"`
}

type CallRejected struct {
	RoomId string `json:"roomId"`
	Reason string `json:"reason,omitempty"`
}

type CallEnded struct {
	RoomId string `json:"roomId"`
	Reason string `json:"reason,omitempty"`
}

type SignalRelayed struct {
	RoomId     string          `json:"roomId"`
	FromUserId string          `json:"fromUserId"`
	Signal     json.RawMessage `json:"signal"`
}

// Error 只发给触发错误的会话
type Error struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Event string `json:"event,omitempty"`
}

func (*MessageReceived) EventName() string { return TypeMessageReceived }
func (*NewNotification) EventName() string { return TypeNewNotification }
func (*IncomingCall) EventName() string    { return TypeIncomingCall }
func (*CallAccepted) EventName() string    { return TypeCallAccepted }
func (*CallRejected) EventName() string    { return TypeCallRejected }
func (*CallEnded) EventName() string       { return TypeCallEnded }
func (*SignalRelayed) EventName() string   { return TypeSignalRelayed }
func (*Error) EventName() string           { return TypeError }

func (*MessageReceived) outbound() {}
func (*NewNotification) outbound() {}
func (*IncomingCall) outbound()    {}
func (*CallAccepted) outbound()    {}
func (*CallRejected) outbound()    {}
func (*CallEnded) outbound()       {}
func (*SignalRelayed) outbound()   {}
func (*Error) outbound()           {}
