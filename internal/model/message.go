package model

import "time"

// Message 会话中的一条文本消息，只追加不修改
// MySQL 按自增 Id 保证追加顺序；MongoDB 中作为 Conversation.messages 的内嵌文档
type Message struct {
	Id             int64     `gorm:"column:id;primaryKey;autoIncrement" bson:"-"`
	Uuid           string    `gorm:"column:uuid;uniqueIndex;type:varchar(32);not null;comment:消息id" bson:"uuid"`
	ConversationId string    `gorm:"column:conversation_id;index;type:varchar(32);not null;comment:会话id" bson:"-"`
	SendId         string    `gorm:"column:send_id;type:varchar(32);not null;comment:发送者id" bson:"senderId"`
	Content        string    `gorm:"column:content;type:TEXT;comment:消息内容" bson:"text"`
	CreatedAt      time.Time `gorm:"column:created_at;comment:服务端时间戳" bson:"timestamp"`
}

func (Message) TableName() string {
	return "message"
}
