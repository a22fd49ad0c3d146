package respond

import "time"

// MessageRespond 单条聊天消息
// 使用位置:
//   - internal/service/message/service.go: SendMessage、GetMessages
//   - internal/dto/event/outbound.go: MessageReceived
type MessageRespond struct {
	MessageId string    `json:"messageId"`
	SenderId  string    `json:"senderId"`
	FirstName string    `json:"firstName,omitempty"` // 发送者展示名，由发送方提供
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"` // 服务端持久化时间
}
