// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
package handler

import (
	"agrilink_server/internal/gateway/websocket"
	"agrilink_server/internal/service"
)

// Handlers 聚合所有 Handler 实例
// 作为依赖注入的入口，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Message      *MessageHandler
	Notification *NotificationHandler
	Presence     *PresenceHandler
	Ws           *WsHandler
}

// NewHandlers 创建并注入所有 Handler 实例
// svc: Service 层聚合实例
// gateway: websocket 网关，与 svc.Chat 绑定
func NewHandlers(svc *service.Services, gateway *websocket.Gateway) *Handlers {
	return &Handlers{
		Message:      NewMessageHandler(svc.Message),
		Notification: NewNotificationHandler(svc.Notification),
		Presence:     NewPresenceHandler(svc.Presence),
		Ws:           NewWsHandler(gateway),
	}
}
