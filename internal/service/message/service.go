// Package message 单聊消息的发送与读取
// 发送流程：校验 -> 查找或创建会话 -> 追加消息 -> 失效缓存 -> 推送到房间 -> 通知接收者
// 持久化成功之前不会产生任何推送
package message

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"agrilink_server/internal/dao"
	myredis "agrilink_server/internal/dao/redis"
	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/dto/respond"
	"agrilink_server/internal/infrastructure/mq"
	"agrilink_server/internal/model"
	"agrilink_server/internal/service/presence"
	"agrilink_server/pkg/constants"
	"agrilink_server/pkg/errorx"
	"agrilink_server/pkg/roomkey"

	"go.uber.org/zap"
)

const doubleDeleteDelay = 500 * time.Millisecond

// Notifier 新消息通知，由 notification.Service 实现
type Notifier interface {
	NewMessage(ctx context.Context, fromUserId, toUserId, fromUserName, messageId string) (*respond.NotificationRespond, error)
}

// SendMessageParams 发送参数，From 必须是已认证的会话所有者
type SendMessageParams struct {
	From       string
	To         string
	SenderName string
	Text       string
}

// Service 消息业务逻辑
type Service struct {
	repos         *dao.Repositories
	registry      *presence.Registry
	notifier      Notifier
	cache         myredis.AsyncCacheService // 可为 nil，表示不使用缓存
	publisher     mq.EventPublisher
	maxTextLength int
	now           func() time.Time
}

// NewService 构造函数
func NewService(repos *dao.Repositories, registry *presence.Registry, notifier Notifier,
	cache myredis.AsyncCacheService, publisher mq.EventPublisher, maxTextLength int) *Service {
	if maxTextLength <= 0 {
		maxTextLength = constants.MESSAGE_MAX_LENGTH
	}
	return &Service{
		repos:         repos,
		registry:      registry,
		notifier:      notifier,
		cache:         cache,
		publisher:     publisher,
		maxTextLength: maxTextLength,
		now:           time.Now,
	}
}

func (s *Service) validate(p SendMessageParams) error {
	if p.From == "" || p.To == "" {
		return errorx.New(errorx.CodeInvalidParam, "缺少发送者或接收者")
	}
	if p.From == p.To {
		return errorx.New(errorx.CodeInvalidParam, "不能给自己发送消息")
	}
	if strings.TrimSpace(p.Text) == "" {
		return errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
	}
	if utf8.RuneCountInString(p.Text) > s.maxTextLength {
		return errorx.Newf(errorx.CodeInvalidParam, "消息长度不能超过 %d", s.maxTextLength)
	}
	return nil
}

// SendMessage 持久化并分发一条消息，返回持久化后的消息
func (s *Service) SendMessage(ctx context.Context, p SendMessageParams) (*respond.MessageRespond, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}

	conv, err := s.repos.Conversation.FindOrCreate(ctx, p.From, p.To)
	if err != nil {
		zap.L().Error("find or create conversation failed",
			zap.String("from", p.From), zap.String("to", p.To), zap.Error(err))
		return nil, err
	}
	msg, err := s.repos.Conversation.AppendMessage(ctx, conv.Uuid, p.From, p.Text, s.now())
	if err != nil {
		zap.L().Error("append message failed",
			zap.String("conversation", conv.Uuid), zap.String("from", p.From), zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx, p.From, p.To)

	rsp := toRespond(msg, p.SenderName)
	roomID := roomkey.Key(p.From, p.To)
	presence.Push(s.registry.SessionsInRoom(roomID), &event.MessageReceived{MessageRespond: *rsp, RoomId: roomID})

	if _, err := s.notifier.NewMessage(ctx, p.From, p.To, p.SenderName, msg.Uuid); err != nil {
		zap.L().Warn("message notification failed",
			zap.String("message", msg.Uuid), zap.String("to", p.To), zap.Error(err))
	}

	s.publisher.Publish(ctx, conv.Uuid, mq.NewEvent(mq.EventMessageCreated, map[string]any{
		"conversationId": conv.Uuid,
		"messageId":      msg.Uuid,
		"senderId":       p.From,
		"recipientId":    p.To,
		"timestamp":      msg.CreatedAt,
	}))
	return rsp, nil
}

// GetMessages 两人会话的完整消息记录（追加顺序）
// 会话不存在时返回空列表，不会创建会话
func (s *Service) GetMessages(ctx context.Context, userId, targetUserId string) ([]respond.MessageRespond, error) {
	if userId == "" || targetUserId == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "缺少用户 ID")
	}
	cacheKey := myredis.MessageListKey(userId, targetUserId)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			zap.L().Warn("redis get message list failed", zap.String("key", cacheKey), zap.Error(err))
		} else if cached != "" {
			var rsp []respond.MessageRespond
			if err := json.Unmarshal([]byte(cached), &rsp); err == nil {
				return rsp, nil
			}
			zap.L().Warn("json unmarshal cache error", zap.String("key", cacheKey))
		}
	}

	conv, err := s.repos.Conversation.FindByPair(ctx, userId, targetUserId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return []respond.MessageRespond{}, nil
		}
		zap.L().Error("find conversation failed", zap.String("user", userId), zap.String("target", targetUserId), zap.Error(err))
		return nil, err
	}
	messages, err := s.repos.Conversation.ListMessages(ctx, conv.Uuid)
	if err != nil {
		zap.L().Error("list messages failed", zap.String("conversation", conv.Uuid), zap.Error(err))
		return nil, err
	}

	rspList := make([]respond.MessageRespond, 0, len(messages))
	for i := range messages {
		rspList = append(rspList, *toRespond(&messages[i], ""))
	}

	if s.cache != nil {
		cache := s.cache
		cache.SubmitTask(func() {
			data, err := json.Marshal(rspList)
			if err != nil {
				zap.L().Error("json marshal error", zap.Error(err))
				return
			}
			ttl := time.Duration(constants.REDIS_TIMEOUT) * time.Minute
			if err := cache.Set(context.Background(), cacheKey, string(data), ttl); err != nil {
				zap.L().Warn("redis set message list failed", zap.String("key", cacheKey), zap.Error(err))
			}
		})
	}
	return rspList, nil
}

// invalidate 同步删除缓存，再异步补删一次，覆盖与并发回填交错的情况
func (s *Service) invalidate(ctx context.Context, userA, userB string) {
	if s.cache == nil {
		return
	}
	cacheKey := myredis.MessageListKey(userA, userB)
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		zap.L().Warn("redis delete message list failed", zap.String("key", cacheKey), zap.Error(err))
	}
	cache := s.cache
	time.AfterFunc(doubleDeleteDelay, func() {
		cache.SubmitTask(func() {
			_ = cache.Delete(context.Background(), cacheKey)
		})
	})
}

func toRespond(m *model.Message, senderName string) *respond.MessageRespond {
	return &respond.MessageRespond{
		MessageId: m.Uuid,
		SenderId:  m.SendId,
		FirstName: senderName,
		Text:      m.Content,
		Timestamp: m.CreatedAt,
	}
}
