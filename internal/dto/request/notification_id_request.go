package request

// NotificationIdRequest 路径参数中的通知 ID
// 使用位置:
//   - internal/handler/notification_handler.go: MarkAsRead、Delete
type NotificationIdRequest struct {
	Id string `json:"id" uri:"id" binding:"required"`
}
