// Package event websocket 上下行事件
// 线上格式统一为 {"type": "<事件名>", "data": {...}}
// 上行事件解码为 Inbound 的具体类型，下行事件实现 Outbound，二者都是封闭的联合类型
package event

import "encoding/json"

// 上行事件名
const (
	TypeJoinUser             = "joinUser"
	TypeJoinChat             = "joinChat"
	TypeSendMessage          = "sendMessage"
	TypeSendFriendRequest    = "sendFriendRequest"
	TypeSendLikeNotification = "sendLikeNotification"
	TypeInitiateCall         = "initiateCall"
	TypeAcceptCall           = "acceptCall"
	TypeRejectCall           = "rejectCall"
	TypeEndCall              = "endCall"
	TypeRelaySignal          = "relaySignal"
)

// 通话类型
const (
	CallAudio = "audio"
	CallVideo = "video"
)

// Inbound 客户端发来的事件
type Inbound interface {
	EventName() string
	inbound()
}

// JoinUser 登记在线，用于接收通知和来电
type JoinUser struct {
	UserId string `json:"userId" validate:"required"`
}

// JoinChat 加入与 TargetUserId 的聊天房间
type JoinChat struct {
	UserId       string `json:"userId" validate:"required"`
	TargetUserId string `json:"targetUserId" validate:"required"`
}

// SendMessage 发送聊天消息，FirstName 为发送者展示名
type SendMessage struct {
	UserId       string `json:"userId" validate:"required"`
	TargetUserId string `json:"targetUserId" validate:"required"`
	FirstName    string `json:"firstName"`
	Text         string `json:"text" validate:"required"`
}

type SendFriendRequest struct {
	FromUserId   string `json:"fromUserId" validate:"required"`
	ToUserId     string `json:"toUserId" validate:"required"`
	FromUserName string `json:"fromUserName"`
}

type SendLikeNotification struct {
	FromUserId   string `json:"fromUserId" validate:"required"`
	ToUserId     string `json:"toUserId" validate:"required"`
	FromUserName string `json:"fromUserName"`
	PostId       string `json:"postId" validate:"required"`
}

// InitiateCall 发起通话，Offer 为 WebRTC SDP，服务端不解析
// RoomId 由客户端指定，省略时由两人 ID 计算
type InitiateCall struct {
	FromUserId string          `json:"fromUserId" validate:"required"`
	ToUserId   string          `json:"toUserId" validate:"required"`
	CallType   string          `json:"callType" validate:"required,oneof=audio video"`
	Offer      json.RawMessage `json:"offer" validate:"required"`
	RoomId     string          `json:"roomId"`
	CallerName string          `json:"callerName"`
}

type AcceptCall struct {
	RoomId string          `json:"roomId" validate:"required"`
	Answer json.RawMessage `json:"answer" validate:"required"`
}

type RejectCall struct {
	RoomId string `json:"roomId" validate:"required"`
	Reason string `json:"reason"`
}

type EndCall struct {
	RoomId string `json:"roomId" validate:"required"`
}

// RelaySignal 转发 ICE 候选、重协商等不透明信令
type RelaySignal struct {
	RoomId string          `json:"roomId" validate:"required"`
	Signal json.RawMessage `json:"signal" validate:"required"`
}

func (*JoinUser) EventName() string             { return TypeJoinUser }
func (*JoinChat) EventName() string             { return TypeJoinChat }
func (*SendMessage) EventName() string          { return TypeSendMessage }
func (*SendFriendRequest) EventName() string    { return TypeSendFriendRequest }
func (*SendLikeNotification) EventName() string { return TypeSendLikeNotification }
func (*InitiateCall) EventName() string         { return TypeInitiateCall }
func (*AcceptCall) EventName() string           { return TypeAcceptCall }
func (*RejectCall) EventName() string           { return TypeRejectCall }
func (*EndCall) EventName() string              { return TypeEndCall }
func (*RelaySignal) EventName() string          { return TypeRelaySignal }

func (*JoinUser) inbound()             {}
func (*JoinChat) inbound()             {}
func (*SendMessage) inbound()          {}
func (*SendFriendRequest) inbound()    {}
func (*SendLikeNotification) inbound() {}
func (*InitiateCall) inbound()         {}
func (*AcceptCall) inbound()           {}
func (*RejectCall) inbound()           {}
func (*EndCall) inbound()              {}
func (*RelaySignal) inbound()          {}
