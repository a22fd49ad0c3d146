// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"net/http"

	"agrilink_server/internal/handler"
	"agrilink_server/internal/infrastructure/metric"
	"agrilink_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器，持有 Handler 聚合
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// 公开路由：健康检查与监控指标；其余路由都需要 JWT 认证
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/metrics", metric.Handler())

	authed := r.Group("")
	authed.Use(middleware.JWTAuth())
	{
		rt.RegisterWebSocketRoutes(authed)    // WebSocket 路由
		rt.RegisterMessageRoutes(authed)      // 消息路由
		rt.RegisterNotificationRoutes(authed) // 通知路由
		rt.RegisterUserRoutes(authed)         // 在线状态
	}
}
