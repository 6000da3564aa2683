package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/valiyev-777/Speaking/internal/websocket"
)

// WebSocketHandler 인증된 사용자의 실시간 연결 업그레이드
type WebSocketHandler struct {
	hub     *websocket.Hub
	handler websocket.MessageHandler
}

func NewWebSocketHandler(hub *websocket.Hub, handler websocket.MessageHandler) *WebSocketHandler {
	return &WebSocketHandler{
		hub:     hub,
		handler: handler,
	}
}

// Connect GET /ws — Auth 미들웨어가 심어 둔 userID로 연결을 등록
func (h *WebSocketHandler) Connect(c *gin.Context) {
	userID := c.GetString("userID")
	websocket.ServeWs(h.hub, h.handler, c.Writer, c.Request, userID)
}
