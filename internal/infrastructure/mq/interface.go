// Package mq 领域事件投递
// 消息、通知、通话的关键状态变化以 JSON 记录写入 Kafka，供下游分析或审计消费
// 投递是尽力而为的：失败只记日志，不影响发起操作
package mq

import (
	"context"
	"time"
)

// 领域事件类型
const (
	EventMessageCreated      = "message.created"
	EventNotificationCreated = "notification.created"
	EventCallStarted         = "call.started"
	EventCallFinished        = "call.finished"
)

// DomainEvent 写入事件主题的记录
type DomainEvent struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	// Publish 发布事件，key 决定分区（同一会话/房间的事件保持有序）
	Publish(ctx context.Context, key string, evt DomainEvent)
	Close() error
}

// NewEvent 以当前时间构造领域事件
func NewEvent(eventType string, payload any) DomainEvent {
	return DomainEvent{Type: eventType, OccurredAt: time.Now(), Payload: payload}
}

// Noop 未启用 Kafka 时使用
type Noop struct{}

func (Noop) Publish(context.Context, string, DomainEvent) {}
func (Noop) Close() error                                  { return nil }
