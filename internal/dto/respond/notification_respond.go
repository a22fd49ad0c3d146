package respond

import (
	"time"

	"agrilink_server/internal/model"
)

// NotificationSender 通知发送者展示信息（冗余字段，推送时无需再查用户）
type NotificationSender struct {
	Id             string `json:"_id"`
	FirstName      string `json:"firstname,omitempty"`
	LastName       string `json:"lastname,omitempty"`
	Username       string `json:"username,omitempty"`
	Name           string `json:"name,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// RelatedEntity 通知关联的实体，kind 取值 User / Post / Message
type RelatedEntity struct {
	Kind model.EntityKind `json:"kind"`
	Id   string           `json:"id"`
}

// NotificationRespond 单条通知
// 使用位置:
//   - internal/service/notification/service.go: Notify、List
//   - internal/dto/event/outbound.go: NewNotification
type NotificationRespond struct {
	Id            string              `json:"_id"`
	Recipient     string              `json:"recipient"`
	Sender        *NotificationSender `json:"sender"`
	Type          string              `json:"type"`
	Message       string              `json:"message"`
	RelatedEntity *RelatedEntity      `json:"relatedEntity"`
	IsRead        bool                `json:"isRead"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// NotificationListRespond 通知列表，最新的在前
type NotificationListRespond struct {
	Notifications []NotificationRespond `json:"notifications"`
	UnreadCount   int64                 `json:"unreadCount"`
}

// MarkAllReadRespond 全部已读的修改条数
type MarkAllReadRespond struct {
	Updated int64 `json:"updated"`
}
