// Package notification 通知分发
// 持久化记录是唯一可信来源；在线推送只是便利，推送丢失时接收者在下次拉取列表时仍能看到
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agrilink_server/internal/dao"
	"agrilink_server/internal/dto/event"
	"agrilink_server/internal/dto/respond"
	"agrilink_server/internal/infrastructure/mq"
	"agrilink_server/internal/model"
	"agrilink_server/internal/service/presence"
	"agrilink_server/pkg/constants"
	"agrilink_server/pkg/errorx"
	"agrilink_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// RelatedEntity 通知关联的实体，Kind 为 model.EntityUser / EntityPost / EntityMessage 之一
type RelatedEntity struct {
	Kind model.EntityKind
	Id   string
}

func UserRef(id string) *RelatedEntity    { return &RelatedEntity{Kind: model.EntityUser, Id: id} }
func PostRef(id string) *RelatedEntity    { return &RelatedEntity{Kind: model.EntityPost, Id: id} }
func MessageRef(id string) *RelatedEntity { return &RelatedEntity{Kind: model.EntityMessage, Id: id} }

// NotifyParams 创建通知的参数
// SenderName 在用户库查不到发送者时作为展示名
type NotifyParams struct {
	RecipientId string
	SenderId    string
	SenderName  string
	Type        string
	Message     string
	Entity      *RelatedEntity
}

// Service 通知业务逻辑
type Service struct {
	repos     *dao.Repositories
	registry  *presence.Registry
	publisher mq.EventPublisher
	now       func() time.Time
}

// NewService 构造函数
func NewService(repos *dao.Repositories, registry *presence.Registry, publisher mq.EventPublisher) *Service {
	return &Service{
		repos:     repos,
		registry:  registry,
		publisher: publisher,
		now:       time.Now,
	}
}

func validateNotify(p NotifyParams) error {
	if p.RecipientId == "" {
		return errorx.New(errorx.CodeInvalidParam, "缺少通知接收者")
	}
	if p.SenderId != "" && p.SenderId == p.RecipientId {
		return errorx.New(errorx.CodeInvalidParam, "不能给自己发送通知")
	}
	if !model.ValidNotificationType(p.Type) {
		return errorx.Newf(errorx.CodeInvalidParam, "未知通知类型 %q", p.Type)
	}
	if strings.TrimSpace(p.Message) == "" {
		return errorx.New(errorx.CodeInvalidParam, "通知内容不能为空")
	}
	if p.Entity != nil && (!p.Entity.Kind.Valid() || p.Entity.Id == "") {
		return errorx.New(errorx.CodeInvalidParam, "关联实体不合法")
	}
	return nil
}

// Notify 持久化一条通知并推送到接收者的每个会话
// 推送结果不影响返回值，持久化失败时不推送
func (s *Service) Notify(ctx context.Context, p NotifyParams) (*respond.NotificationRespond, error) {
	if err := validateNotify(p); err != nil {
		return nil, err
	}

	n := &model.Notification{
		Uuid:        snowflake.NewNotificationID(),
		RecipientId: p.RecipientId,
		SenderId:    p.SenderId,
		Type:        p.Type,
		Message:     p.Message,
		IsRead:      false,
		CreatedAt:   s.now(),
	}
	if p.Entity != nil {
		n.EntityModel = p.Entity.Kind
		n.EntityId = p.Entity.Id
	}
	if err := s.repos.Notification.Create(ctx, n); err != nil {
		zap.L().Error("create notification failed",
			zap.String("recipient", p.RecipientId),
			zap.String("type", p.Type),
			zap.Error(err))
		return nil, err
	}

	rsp := toRespond(n, s.senderInfo(ctx, p.SenderId, p.SenderName, nil))
	presence.Push(s.registry.SessionsForUser(p.RecipientId), &event.NewNotification{NotificationRespond: *rsp})
	s.publisher.Publish(ctx, p.RecipientId, mq.NewEvent(mq.EventNotificationCreated, rsp))
	return rsp, nil
}

func displayOr(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Someone"
	}
	return name
}

// FriendRequest 好友申请通知
func (s *Service) FriendRequest(ctx context.Context, fromUserId, toUserId, fromUserName string) (*respond.NotificationRespond, error) {
	return s.Notify(ctx, NotifyParams{
		RecipientId: toUserId,
		SenderId:    fromUserId,
		SenderName:  fromUserName,
		Type:        model.NotificationFriendRequest,
		Message:     fmt.Sprintf("%s sent you a friend request", displayOr(fromUserName)),
		Entity:      UserRef(fromUserId),
	})
}

// Like 帖子点赞通知
func (s *Service) Like(ctx context.Context, fromUserId, toUserId, fromUserName, postId string) (*respond.NotificationRespond, error) {
	return s.Notify(ctx, NotifyParams{
		RecipientId: toUserId,
		SenderId:    fromUserId,
		SenderName:  fromUserName,
		Type:        model.NotificationLike,
		Message:     fmt.Sprintf("%s liked your post", displayOr(fromUserName)),
		Entity:      PostRef(postId),
	})
}

// NewMessage 新聊天消息通知
func (s *Service) NewMessage(ctx context.Context, fromUserId, toUserId, fromUserName, messageId string) (*respond.NotificationRespond, error) {
	return s.Notify(ctx, NotifyParams{
		RecipientId: toUserId,
		SenderId:    fromUserId,
		SenderName:  fromUserName,
		Type:        model.NotificationMessage,
		Message:     fmt.Sprintf("%s sent you a message", displayOr(fromUserName)),
		Entity:      MessageRef(messageId),
	})
}

// List 接收者最近的通知（最新在前）及未读总数
func (s *Service) List(ctx context.Context, recipientId string) (*respond.NotificationListRespond, error) {
	list, err := s.repos.Notification.ListByRecipient(ctx, recipientId, constants.NOTIFICATION_LIST_LIMIT)
	if err != nil {
		zap.L().Error("list notifications failed", zap.String("recipient", recipientId), zap.Error(err))
		return nil, err
	}
	unread, err := s.repos.Notification.CountUnread(ctx, recipientId)
	if err != nil {
		zap.L().Error("count unread failed", zap.String("recipient", recipientId), zap.Error(err))
		return nil, err
	}

	senders := make(map[string]*respond.NotificationSender)
	rsp := &respond.NotificationListRespond{
		Notifications: make([]respond.NotificationRespond, 0, len(list)),
		UnreadCount:   unread,
	}
	for i := range list {
		sender := s.senderInfo(ctx, list[i].SenderId, "", senders)
		rsp.Notifications = append(rsp.Notifications, *toRespond(&list[i], sender))
	}
	return rsp, nil
}

// authorize 通知必须存在且属于调用者
func (s *Service) authorize(ctx context.Context, callerId, id string) (*model.Notification, error) {
	n, err := s.repos.Notification.FindByUuid(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientId != callerId {
		zap.L().Warn("notification access denied",
			zap.String("caller", callerId),
			zap.String("notification", id))
		return nil, errorx.ErrForbidden
	}
	return n, nil
}

// MarkAsRead 标记单条已读，返回更新后的通知
func (s *Service) MarkAsRead(ctx context.Context, callerId, id string) (*respond.NotificationRespond, error) {
	n, err := s.authorize(ctx, callerId, id)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Notification.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	n.IsRead = true
	return toRespond(n, s.senderInfo(ctx, n.SenderId, "", nil)), nil
}

// MarkAllAsRead 只修改调用者自己的未读通知
func (s *Service) MarkAllAsRead(ctx context.Context, callerId string) (int64, error) {
	return s.repos.Notification.MarkAllRead(ctx, callerId)
}

// Delete 删除调用者自己的通知
func (s *Service) Delete(ctx context.Context, callerId, id string) error {
	if _, err := s.authorize(ctx, callerId, id); err != nil {
		return err
	}
	return s.repos.Notification.Delete(ctx, id)
}

// senderInfo 查询发送者展示信息，查不到时退回调用方提供的名字
// cache 非 nil 时在一次列表查询内复用结果
func (s *Service) senderInfo(ctx context.Context, senderId, fallbackName string, cache map[string]*respond.NotificationSender) *respond.NotificationSender {
	if senderId == "" {
		return nil
	}
	if cache != nil {
		if v, ok := cache[senderId]; ok {
			return v
		}
	}
	sender := &respond.NotificationSender{Id: senderId, Name: fallbackName}
	user, err := s.repos.User.FindDisplayInfo(ctx, senderId)
	switch {
	case err == nil:
		sender.FirstName = user.FirstName
		sender.LastName = user.LastName
		sender.Username = user.Username
		sender.ProfilePicture = user.Avatar
		if sender.Name == "" {
			sender.Name = user.DisplayName()
		}
	case errorx.IsNotFound(err):
	default:
		zap.L().Warn("load sender display info failed", zap.String("sender", senderId), zap.Error(err))
	}
	if cache != nil {
		cache[senderId] = sender
	}
	return sender
}

func toRespond(n *model.Notification, sender *respond.NotificationSender) *respond.NotificationRespond {
	rsp := &respond.NotificationRespond{
		Id:        n.Uuid,
		Recipient: n.RecipientId,
		Sender:    sender,
		Type:      n.Type,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if n.EntityModel != "" {
		rsp.RelatedEntity = &respond.RelatedEntity{Kind: n.EntityModel, Id: n.EntityId}
	}
	return rsp
}
