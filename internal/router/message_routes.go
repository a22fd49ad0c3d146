// Package router 提供 HTTP 路由注册
// 本文件定义消息相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册消息相关路由（需要认证）
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	messageGroup := rg.Group("/message")
	{
		messageGroup.GET("/getMessageList", rt.handlers.Message.GetMessageList) // 获取私聊消息记录
		messageGroup.POST("/send", rt.handlers.Message.SendMessage)             // HTTP 发送消息
	}
}
