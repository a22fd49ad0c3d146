package request

// GetMessageListRequest 获取与某个用户的聊天记录
// 使用位置:
//   - internal/handler/message_handler.go: GetMessageList
type GetMessageListRequest struct {
	TargetUserId string `json:"target_user_id" form:"target_user_id" binding:"required"`
}
