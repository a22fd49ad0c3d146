package request

// OnlineRequest 查询用户在线状态
// 使用位置:
//   - internal/handler/presence_handler.go: Online
type OnlineRequest struct {
	UserId string `json:"user_id" form:"user_id" binding:"required"`
}
