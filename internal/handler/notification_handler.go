package handler

import (
	"agrilink_server/internal/dto/request"
	"agrilink_server/internal/dto/respond"
	"agrilink_server/internal/infrastructure/middleware"
	"agrilink_server/internal/service"

	"github.com/gin-gonic/gin"
)

// NotificationHandler 通知请求处理器，所有操作只针对当前登录用户
type NotificationHandler struct {
	notificationSvc service.NotificationService
}

// NewNotificationHandler 创建通知处理器实例
func NewNotificationHandler(notificationSvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

// List 最近 50 条通知及未读数
// GET /notification
func (h *NotificationHandler) List(c *gin.Context) {
	data, err := h.notificationSvc.List(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MarkAsRead 标记单条通知已读
// PUT /notification/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	var req request.NotificationIdRequest
	if err := c.ShouldBindUri(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.notificationSvc.MarkAsRead(c.Request.Context(), middleware.CurrentUserID(c), req.Id)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MarkAllAsRead 标记全部通知已读
// PUT /notification/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	updated, err := h.notificationSvc.MarkAllAsRead(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.MarkAllReadRespond{Updated: updated})
}

// Delete 删除单条通知
// DELETE /notification/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	var req request.NotificationIdRequest
	if err := c.ShouldBindUri(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.notificationSvc.Delete(c.Request.Context(), middleware.CurrentUserID(c), req.Id); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}
