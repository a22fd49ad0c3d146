package request

// SendMessageRequest 通过 HTTP 发送聊天消息，发送者取自登录态
// 使用位置:
//   - internal/handler/message_handler.go: SendMessage
type SendMessageRequest struct {
	TargetUserId string `json:"targetUserId" binding:"required"`
	FirstName    string `json:"firstName"`
	Text         string `json:"text" binding:"required"`
}
