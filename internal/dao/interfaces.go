// Package dao 定义数据访问层接口
// Service 层只依赖这里的接口，具体实现在 mysql、mongo、memory 子包中
// 所有实现返回的错误都已包装为 errorx 错误码：
//   - 记录不存在 -> CodeNotFound
//   - 其他存储错误 -> CodeDBError
package dao

import (
	"context"
	"time"

	"agrilink_server/internal/model"
)

// UserRepository 用户展示信息查询
type UserRepository interface {
	// FindDisplayInfo 根据用户 ID 查询昵称、头像
	FindDisplayInfo(ctx context.Context, userId string) (*model.UserInfo, error)
}

// ConversationRepository 单聊会话与消息
type ConversationRepository interface {
	// FindOrCreate 查找两人的会话，不存在则创建
	// 参数顺序无关；并发创建同一对用户只会得到一条会话
	FindOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error)
	// FindByPair 查找两人的会话，不存在返回 CodeNotFound，不会创建
	FindByPair(ctx context.Context, userA, userB string) (*model.Conversation, error)
	// AppendMessage 向会话追加一条消息
	AppendMessage(ctx context.Context, conversationId, senderId, text string, ts time.Time) (*model.Message, error)
	// ListMessages 按追加顺序返回会话全部消息
	ListMessages(ctx context.Context, conversationId string) ([]model.Message, error)
}

// NotificationRepository 通知
type NotificationRepository interface {
	// Create 保存一条新通知
	Create(ctx context.Context, n *model.Notification) error
	// FindByUuid 根据通知 ID 查询
	FindByUuid(ctx context.Context, id string) (*model.Notification, error)
	// ListByRecipient 按时间倒序返回接收者最近 limit 条通知
	ListByRecipient(ctx context.Context, recipientId string, limit int) ([]model.Notification, error)
	// CountUnread 接收者未读通知数
	CountUnread(ctx context.Context, recipientId string) (int64, error)
	// MarkRead 标记单条已读
	MarkRead(ctx context.Context, id string) error
	// MarkAllRead 标记接收者全部未读为已读，返回修改条数
	MarkAllRead(ctx context.Context, recipientId string) (int64, error)
	// Delete 删除单条通知
	Delete(ctx context.Context, id string) error
}

// Backend 存储连接本身的健康检查与关闭
type Backend interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	User         UserRepository
	Conversation ConversationRepository
	Notification NotificationRepository
	backend      Backend
}

// NewRepositories 由具体驱动调用，组装 Repository 聚合
func NewRepositories(user UserRepository, conv ConversationRepository, notif NotificationRepository, backend Backend) *Repositories {
	return &Repositories{
		User:         user,
		Conversation: conv,
		Notification: notif,
		backend:      backend,
	}
}

// Ping 检查存储是否可用
func (r *Repositories) Ping(ctx context.Context) error {
	if r.backend == nil {
		return nil
	}
	return r.backend.Ping(ctx)
}

// Close 释放存储连接
func (r *Repositories) Close(ctx context.Context) error {
	if r.backend == nil {
		return nil
	}
	return r.backend.Close(ctx)
}
