package handler

import (
	"agrilink_server/internal/dto/request"
	"agrilink_server/internal/dto/respond"
	"agrilink_server/internal/service"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presenceSvc service.PresenceService
}

func NewPresenceHandler(presenceSvc service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceSvc: presenceSvc}
}

// Online 查询用户是否在线
// GET /user/online?user_id=xxx
func (h *PresenceHandler) Online(c *gin.Context) {
	var req request.OnlineRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	sessions := h.presenceSvc.SessionCount(req.UserId)
	HandleSuccess(c, respond.OnlineRespond{
		UserId:   req.UserId,
		Online:   sessions > 0,
		Sessions: sessions,
	})
}
