package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/valiyev-777/Speaking/pkg/logger"
	"github.com/valiyev-777/Speaking/pkg/metrics"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	// SDP offer/answer가 수 KB까지 가므로 여유 있게
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 프로덕션에서는 특정 origin만 허용
		return true
	},
}

// MessageHandler 게이트웨이 인바운드 처리기. 서비스 계층이 구현
type MessageHandler interface {
	HandleConnect(userID string)
	HandleMessage(userID, msgType string, data json.RawMessage)
	HandleDisconnect(userID string)
}

// envelope 인바운드 와이어 포맷 {type, data}
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client 인증된 사용자 한 명의 양방향 WebSocket 연결
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userID  string
	handler MessageHandler
	logger  *zap.Logger

	// 어떤 종료 경로든 정리는 정확히 한 번
	cleanupOnce sync.Once
}

// NewClient 클라이언트 생성
func NewClient(hub *Hub, conn *websocket.Conn, userID string, handler MessageHandler) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		userID:  userID,
		handler: handler,
		logger:  logger.Named("ws"),
	}
}

// cleanup 연결 종료 정리: 레지스트리 제거 + presence/대기열 정리
func (c *Client) cleanup() {
	c.cleanupOnce.Do(func() {
		c.hub.Unregister(c)
		c.handler.HandleDisconnect(c.userID)
		c.conn.Close()
	})
}

// readPump 인바운드 메시지 수신 및 디스패치
func (c *Client) readPump() {
	defer c.cleanup()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error",
					zap.String("userId", c.userID),
					zap.Error(err))
			}
			break
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// 잘못된 JSON은 무시하고 연결은 유지
			c.logger.Warn("Malformed inbound message",
				zap.String("userId", c.userID),
				zap.Error(err))
			continue
		}

		c.handler.HandleMessage(c.userID, env.Type, env.Data)
	}
}

// writePump Hub로부터 받은 메시지를 클라이언트에게 전송
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cleanup()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub가 채널을 닫음 (재연결로 대체되거나 해제됨)
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("Failed to write message",
					zap.String("userId", c.userID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs WebSocket 연결 업그레이드 및 클라이언트 시작
func ServeWs(hub *Hub, handler MessageHandler, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := NewClient(hub, conn, userID, handler)
	hub.Register(client)
	handler.HandleConnect(userID)
	metrics.TotalConnections.Inc()

	go client.writePump()
	go client.readPump()
}
