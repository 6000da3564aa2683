package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/internal/repository"
	"github.com/valiyev-777/Speaking/pkg/logger"
	"github.com/valiyev-777/Speaking/pkg/metrics"
)

// QueueHandler REST 경로의 대기열 참가/탈퇴/상태 조회.
// WebSocket join_queue와 같은 저장소 계약을 사용
type QueueHandler struct {
	queueRepo        *repository.QueueRepository
	rouletteInterval time.Duration
}

func NewQueueHandler(queueRepo *repository.QueueRepository, rouletteInterval time.Duration) *QueueHandler {
	return &QueueHandler{
		queueRepo:        queueRepo,
		rouletteInterval: rouletteInterval,
	}
}

type JoinLevelFilterRequest struct {
	LevelFilter *float64 `json:"level_filter"`
}

type QueueStatusResponse struct {
	InQueue              bool       `json:"in_queue"`
	Mode                 string     `json:"mode,omitempty"`
	Position             int        `json:"position,omitempty"`
	JoinedAt             *time.Time `json:"joined_at,omitempty"`
	EstimatedWaitSeconds int        `json:"estimated_wait_seconds,omitempty"`
}

// JoinRoulette 룰렛 대기열 참가
func (h *QueueHandler) JoinRoulette(c *gin.Context) {
	h.join(c, models.ModeRoulette, nil)
}

// JoinLevelFilter 레벨 필터 대기열 참가
func (h *QueueHandler) JoinLevelFilter(c *gin.Context) {
	var req JoinLevelFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.join(c, models.ModeLevelFilter, req.LevelFilter)
}

func (h *QueueHandler) join(c *gin.Context, mode models.QueueMode, levelFilter *float64) {
	userID := c.GetString("userID")

	entry, err := h.queueRepo.Enqueue(userID, mode, levelFilter)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveEntry) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You are already in a queue"})
			return
		}
		logger.Error("Failed to join queue", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join queue"})
		return
	}

	metrics.QueueJoins.WithLabelValues(string(mode)).Inc()

	position, err := h.queueRepo.QueuePosition(entry)
	if err != nil {
		logger.Warn("Failed to get queue position", "userId", userID, "error", err)
	}

	c.JSON(http.StatusOK, QueueStatusResponse{
		InQueue:              true,
		Mode:                 string(mode),
		Position:             position,
		JoinedAt:             &entry.JoinedAt,
		EstimatedWaitSeconds: int(h.rouletteInterval.Seconds()),
	})
}

// LeaveQueue 대기열 탈퇴 (활성 엔트리가 없어도 멱등)
func (h *QueueHandler) LeaveQueue(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.queueRepo.DeactivateForUser(userID); err != nil {
		logger.Error("Failed to leave queue", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave queue"})
		return
	}

	c.JSON(http.StatusOK, QueueStatusResponse{InQueue: false})
}

// QueueStatus 현재 대기열 상태 조회
func (h *QueueHandler) QueueStatus(c *gin.Context) {
	userID := c.GetString("userID")

	entry, err := h.queueRepo.ActiveEntryForUser(userID)
	if err != nil {
		logger.Error("Failed to get queue status", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get queue status"})
		return
	}

	if entry == nil {
		c.JSON(http.StatusOK, QueueStatusResponse{InQueue: false})
		return
	}

	position, err := h.queueRepo.QueuePosition(entry)
	if err != nil {
		logger.Warn("Failed to get queue position", "userId", userID, "error", err)
	}

	c.JSON(http.StatusOK, QueueStatusResponse{
		InQueue:              true,
		Mode:                 string(entry.Mode),
		Position:             position,
		JoinedAt:             &entry.JoinedAt,
		EstimatedWaitSeconds: int(h.rouletteInterval.Seconds()),
	})
}
