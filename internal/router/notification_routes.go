package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterNotificationRoutes 注册通知相关路由（需要认证）
func (rt *Router) RegisterNotificationRoutes(rg *gin.RouterGroup) {
	notificationGroup := rg.Group("/notification")
	{
		notificationGroup.GET("", rt.handlers.Notification.List)
		notificationGroup.PUT("/read-all", rt.handlers.Notification.MarkAllAsRead)
		notificationGroup.PUT("/:id/read", rt.handlers.Notification.MarkAsRead)
		notificationGroup.DELETE("/:id", rt.handlers.Notification.Delete)
	}
}
