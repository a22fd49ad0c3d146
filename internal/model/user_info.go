// Package model 定义持久化实体
// 同一组结构体同时服务 gorm（MySQL）与 mongo-driver（MongoDB），因此同时携带 gorm 与 bson 标签
package model

import "time"

// UserInfo 用户展示信息
// 账号、密码等由认证子系统维护，这里只读取昵称和头像用于通知的发送者信息
type UserInfo struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement" bson:"-"`
	Uuid      string    `gorm:"column:uuid;uniqueIndex;type:varchar(32);not null;comment:用户id" bson:"_id"`
	FirstName string    `gorm:"column:first_name;type:varchar(20);comment:名" bson:"firstname"`
	LastName  string    `gorm:"column:last_name;type:varchar(20);comment:姓" bson:"lastname,omitempty"`
	Username  string    `gorm:"column:username;type:varchar(32);comment:用户名" bson:"username,omitempty"`
	Avatar    string    `gorm:"column:avatar;type:varchar(255);comment:头像" bson:"profilePicture,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" bson:"createdAt"`
}

func (UserInfo) TableName() string {
	return "user_info"
}

// DisplayName 展示名：优先 "名 姓"，其次用户名
func (u *UserInfo) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}
