package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterUserRoutes 用户在线状态查询（需要认证）
func (rt *Router) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/user/online", rt.handlers.Presence.Online)
}
