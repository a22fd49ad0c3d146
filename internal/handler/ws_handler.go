package handler

import (
	"agrilink_server/internal/gateway/websocket"
	"agrilink_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// WsHandler websocket 握手
type WsHandler struct {
	gateway *websocket.Gateway
}

func NewWsHandler(gateway *websocket.Gateway) *WsHandler {
	return &WsHandler{gateway: gateway}
}

// Connect 升级为 websocket 连接，阻塞到连接关闭
// GET /wss，Token 可放在 Cookie 或 token 查询参数中
// 连接建立即登记在线，无需等待 joinUser
func (h *WsHandler) Connect(c *gin.Context) {
	h.gateway.Serve(c, middleware.CurrentUserID(c))
}
