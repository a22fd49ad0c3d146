package model

import "time"

// 通知类型
const (
	NotificationFriendRequest = "friend_request"
	NotificationMessage       = "message"
	NotificationLike          = "like"
	NotificationComment       = "comment"
	NotificationFollow        = "follow"
)

// EntityKind 通知关联实体的类型
type EntityKind string

const (
	EntityUser    EntityKind = "User"
	EntityPost    EntityKind = "Post"
	EntityMessage EntityKind = "Message"
)

// Notification 发给某个用户的一条通知
// 只有 RecipientId 对应的用户可以标记已读或删除
type Notification struct {
	Id          int64      `gorm:"column:id;primaryKey;autoIncrement" bson:"-"`
	Uuid        string     `gorm:"column:uuid;uniqueIndex;type:varchar(32);not null;comment:通知id" bson:"_id"`
	RecipientId string     `gorm:"column:recipient_id;index:idx_notification_recipient;type:varchar(32);not null" bson:"recipient"`
	SenderId    string     `gorm:"column:sender_id;type:varchar(32)" bson:"sender,omitempty"`
	Type        string     `gorm:"column:type;type:varchar(20);not null" bson:"type"`
	Message     string     `gorm:"column:message;type:varchar(255);not null" bson:"message"`
	EntityModel EntityKind `gorm:"column:entity_model;type:varchar(10)" bson:"entityModel,omitempty"`
	EntityId    string     `gorm:"column:entity_id;type:varchar(32)" bson:"relatedEntity,omitempty"`
	IsRead      bool       `gorm:"column:is_read;index:idx_notification_recipient;not null;default:false" bson:"isRead"`
	CreatedAt   time.Time  `gorm:"column:created_at;index" bson:"createdAt"`
}

func (Notification) TableName() string {
	return "notification"
}

// ValidNotificationType 通知类型是否合法
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationFriendRequest, NotificationMessage, NotificationLike, NotificationComment, NotificationFollow:
		return true
	}
	return false
}

// Valid 关联实体类型是否合法
func (k EntityKind) Valid() bool {
	switch k {
	case EntityUser, EntityPost, EntityMessage:
		return true
	}
	return false
}
