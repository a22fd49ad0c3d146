// Package service 定义业务层接口
// 本文件定义 Handler 层依赖的 Service 接口，具体实现位于各子包
package service

import (
	"context"

	"agrilink_server/internal/dto/respond"
	"agrilink_server/internal/service/message"
)

// MessageService 单聊消息业务接口
type MessageService interface {
	// SendMessage 持久化并推送一条消息
	SendMessage(ctx context.Context, p message.SendMessageParams) (*respond.MessageRespond, error)
	// GetMessages 获取两人之间的消息记录，没有会话时返回空列表
	GetMessages(ctx context.Context, userId, targetUserId string) ([]respond.MessageRespond, error)
}

// NotificationService 通知业务接口
// 所有修改操作都以调用者身份校验归属
type NotificationService interface {
	// List 最近的通知及未读数
	List(ctx context.Context, recipientId string) (*respond.NotificationListRespond, error)
	// MarkAsRead 标记单条已读
	MarkAsRead(ctx context.Context, callerId, id string) (*respond.NotificationRespond, error)
	// MarkAllAsRead 标记调用者全部通知已读
	MarkAllAsRead(ctx context.Context, callerId string) (int64, error)
	// Delete 删除单条通知
	Delete(ctx context.Context, callerId, id string) error
}

// PresenceService 在线状态查询
type PresenceService interface {
	IsOnline(userId string) bool
	SessionCount(userId string) int
}
