package model

import "time"

// Conversation 两个用户之间的单聊会话
// UserOneId 恒小于 UserTwoId，(UserOneId, UserTwoId) 唯一
type Conversation struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement" bson:"-"`
	Uuid      string    `gorm:"column:uuid;uniqueIndex;type:varchar(32);not null;comment:会话id" bson:"_id"`
	UserOneId string    `gorm:"column:user_one_id;uniqueIndex:idx_conversation_pair;type:varchar(32);not null" bson:"userOneId"`
	UserTwoId string    `gorm:"column:user_two_id;uniqueIndex:idx_conversation_pair;type:varchar(32);not null" bson:"userTwoId"`
	Messages  []Message `gorm:"-" bson:"messages"`
	CreatedAt time.Time `gorm:"column:created_at" bson:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" bson:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversation"
}

// HasParticipant 判断用户是否属于该会话
func (c *Conversation) HasParticipant(userId string) bool {
	return c.UserOneId == userId || c.UserTwoId == userId
}
