// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"time"

	"agrilink_server/internal/config"
	"agrilink_server/internal/dao"
	myredis "agrilink_server/internal/dao/redis"
	"agrilink_server/internal/infrastructure/mq"
	"agrilink_server/internal/service/call"
	"agrilink_server/internal/service/chat"
	"agrilink_server/internal/service/message"
	"agrilink_server/internal/service/notification"
	"agrilink_server/internal/service/presence"
)

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层和 websocket 网关通过此结构访问业务层
type Services struct {
	Registry     *presence.Registry
	Message      *message.Service
	Notification *notification.Service
	Call         *call.Coordinator
	Chat         *chat.Server
	Presence     PresenceService
}

// NewServices 创建并注入所有 Service 实例
// 依赖注入流程：
//  1. 创建进程内的在线登记表，所有服务共用
//  2. 按依赖顺序创建通知、消息、通话服务
//  3. 组装聊天服务器
//
// cache 可为 nil（未启用 Redis）
func NewServices(repos *dao.Repositories, cache myredis.AsyncCacheService, publisher mq.EventPublisher, rt config.RealtimeConfig) *Services {
	registry := presence.NewRegistry()
	notificationSvc := notification.NewService(repos, registry, publisher)
	messageSvc := message.NewService(repos, registry, notificationSvc, cache, publisher, rt.MaxTextLength)
	callSvc := call.NewCoordinator(registry, publisher, time.Duration(rt.RingTimeoutSeconds)*time.Second)

	return &Services{
		Registry:     registry,
		Message:      messageSvc,
		Notification: notificationSvc,
		Call:         callSvc,
		Chat:         chat.NewServer(registry, messageSvc, notificationSvc, callSvc),
		Presence:     presenceService{registry},
	}
}

// presenceService 在线状态查询，直接读取登记表
type presenceService struct {
	registry *presence.Registry
}

func (p presenceService) IsOnline(userId string) bool {
	return p.registry.IsOnline(userId)
}

func (p presenceService) SessionCount(userId string) int {
	return len(p.registry.SessionsForUser(userId))
}

var (
	_ MessageService      = (*message.Service)(nil)
	_ NotificationService = (*notification.Service)(nil)
)
