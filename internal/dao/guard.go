package dao

import (
	"context"
	"errors"
	"time"

	"agrilink_server/internal/config"
	"agrilink_server/internal/model"
	"agrilink_server/pkg/errorx"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Guard 给所有写操作加上熔断器
// 存储连续失败达到阈值后，写操作直接返回 CodeStorageUnavailable，读操作照常执行
func Guard(repos *Repositories, cfg config.BreakerConfig) *Repositories {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "storage-write",
		MaxRequests: cfg.HalfOpenRequest,
		Timeout:     time.Duration(cfg.OpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// 只有存储本身的错误计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || !errorx.HasCode(err, errorx.CodeDBError)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			zap.L().Warn("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Repositories{
		User:         repos.User,
		Conversation: &guardedConversations{next: repos.Conversation, cb: cb},
		Notification: &guardedNotifications{next: repos.Notification, cb: cb},
		backend:      repos.backend,
	}
}

// guardWrite 在熔断器内执行写操作
func guardWrite[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, errorx.Wrap(err, errorx.CodeStorageUnavailable, "存储暂不可用，请稍后重试")
		}
		// fn 失败时 Execute 仍返回其结果
		if v, ok := out.(T); ok {
			return v, err
		}
		return zero, err
	}
	return out.(T), nil
}

type guardedConversations struct {
	next ConversationRepository
	cb   *gobreaker.CircuitBreaker
}

func (g *guardedConversations) FindOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	return guardWrite(g.cb, func() (*model.Conversation, error) {
		return g.next.FindOrCreate(ctx, userA, userB)
	})
}

func (g *guardedConversations) FindByPair(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	return g.next.FindByPair(ctx, userA, userB)
}

func (g *guardedConversations) AppendMessage(ctx context.Context, conversationId, senderId, text string, ts time.Time) (*model.Message, error) {
	return guardWrite(g.cb, func() (*model.Message, error) {
		return g.next.AppendMessage(ctx, conversationId, senderId, text, ts)
	})
}

func (g *guardedConversations) ListMessages(ctx context.Context, conversationId string) ([]model.Message, error) {
	return g.next.ListMessages(ctx, conversationId)
}

type guardedNotifications struct {
	next NotificationRepository
	cb   *gobreaker.CircuitBreaker
}

func (g *guardedNotifications) Create(ctx context.Context, n *model.Notification) error {
	_, err := guardWrite(g.cb, func() (struct{}, error) {
		return struct{}{}, g.next.Create(ctx, n)
	})
	return err
}

func (g *guardedNotifications) FindByUuid(ctx context.Context, id string) (*model.Notification, error) {
	return g.next.FindByUuid(ctx, id)
}

func (g *guardedNotifications) ListByRecipient(ctx context.Context, recipientId string, limit int) ([]model.Notification, error) {
	return g.next.ListByRecipient(ctx, recipientId, limit)
}

func (g *guardedNotifications) CountUnread(ctx context.Context, recipientId string) (int64, error) {
	return g.next.CountUnread(ctx, recipientId)
}

func (g *guardedNotifications) MarkRead(ctx context.Context, id string) error {
	_, err := guardWrite(g.cb, func() (struct{}, error) {
		return struct{}{}, g.next.MarkRead(ctx, id)
	})
	return err
}

func (g *guardedNotifications) MarkAllRead(ctx context.Context, recipientId string) (int64, error) {
	return guardWrite(g.cb, func() (int64, error) {
		return g.next.MarkAllRead(ctx, recipientId)
	})
}

func (g *guardedNotifications) Delete(ctx context.Context, id string) error {
	_, err := guardWrite(g.cb, func() (struct{}, error) {
		return struct{}{}, g.next.Delete(ctx, id)
	})
	return err
}
