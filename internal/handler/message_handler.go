// Package handler 提供 HTTP 请求处理器
// 本文件处理单聊消息相关的 API 请求
package handler

import (
	"agrilink_server/internal/dto/request"
	"agrilink_server/internal/infrastructure/middleware"
	"agrilink_server/internal/service"
	"agrilink_server/internal/service/message"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	messageSvc service.MessageService
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageSvc service.MessageService) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc}
}

// GetMessageList 获取与某个用户的聊天记录
// GET /message/getMessageList?target_user_id=xxx
// 没有聊过天时返回空列表
func (h *MessageHandler) GetMessageList(c *gin.Context) {
	var req request.GetMessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.GetMessages(c.Request.Context(), middleware.CurrentUserID(c), req.TargetUserId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// SendMessage 通过 HTTP 发送消息，与 websocket sendMessage 走同一流程
// POST /message/send
// 请求体: request.SendMessageRequest
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.SendMessage(c.Request.Context(), message.SendMessageParams{
		From:       middleware.CurrentUserID(c),
		To:         req.TargetUserId,
		SenderName: req.FirstName,
		Text:       req.Text,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
