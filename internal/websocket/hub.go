package websocket

import (
	"encoding/json"
	"sync"

	"github.com/valiyev-777/Speaking/pkg/logger"
	"github.com/valiyev-777/Speaking/pkg/metrics"
	"go.uber.org/zap"
)

// Hub 연결 레지스트리: userID → 활성 클라이언트.
// "지금 연결돼 있는가"의 유일한 기준. 등록/해제/조회는 하나의 락으로 보호하고
// 실제 전송은 조회한 클라이언트 참조에 대해 락 밖에서 진행
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.Named("hub"),
	}
}

// Register 클라이언트 등록. 같은 사용자의 기존 연결은 대체됨
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.clients[client.userID]; exists {
		close(old.send)
		h.logger.Info("Replaced existing WebSocket connection",
			zap.String("userId", client.userID))
	}

	h.clients[client.userID] = client
	metrics.ActiveConnections.Set(float64(len(h.clients)))

	h.logger.Info("WebSocket client registered",
		zap.String("userId", client.userID),
		zap.Int("totalClients", len(h.clients)))
}

// Unregister 클라이언트 해제. 재연결로 대체된 오래된 클라이언트는 건드리지 않음
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[client.userID]; exists && current == client {
		delete(h.clients, client.userID)
		close(client.send)
		metrics.ActiveConnections.Set(float64(len(h.clients)))

		h.logger.Info("WebSocket client unregistered",
			zap.String("userId", client.userID),
			zap.Int("totalClients", len(h.clients)))
	}
}

// SendToUser 사용자에게 메시지 전달 (fire-and-forget).
// 연결이 없거나 송신 버퍼가 가득 차면 false
func (h *Hub) SendToUser(userID string, payload interface{}) bool {
	// 락을 쥔 채 enqueue까지 진행해 Unregister의 close와 경합하지 않도록 함
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[userID]
	if !exists {
		metrics.MessagesDropped.Inc()
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal outbound message",
			zap.String("userId", userID), zap.Error(err))
		return false
	}

	select {
	case client.send <- data:
		metrics.MessagesSent.Inc()
		return true
	default:
		// 버퍼가 가득 찬 연결은 정체된 것으로 보고 정리
		h.logger.Warn("Client send buffer full, unregistering",
			zap.String("userId", userID))
		metrics.MessagesDropped.Inc()
		go h.Unregister(client)
		return false
	}
}

// IsOnline 사용자 연결 여부
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, exists := h.clients[userID]
	return exists
}

// ClientCount 현재 연결 수
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
