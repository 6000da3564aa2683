package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/valiyev-777/Speaking/internal/repository"
	"github.com/valiyev-777/Speaking/pkg/logger"
)

// SessionHandler 세션 이력 조회 API
type SessionHandler struct {
	sessionRepo *repository.SessionRepository
}

func NewSessionHandler(sessionRepo *repository.SessionRepository) *SessionHandler {
	return &SessionHandler{sessionRepo: sessionRepo}
}

// ListSessions 현재 사용자의 세션 이력 (최신순)
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID := c.GetString("userID")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	sessions, err := h.sessionRepo.ListByUser(userID, limit, offset)
	if err != nil {
		logger.Error("Failed to list sessions", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession 단건 세션 조회 (참가자만 접근 가능)
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID := c.GetString("userID")
	sessionID := c.Param("id")

	session, err := h.sessionRepo.FindByID(sessionID)
	if err != nil {
		logger.Error("Failed to get session", "sessionId", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get session"})
		return
	}
	if session == nil || (session.User1ID != userID && session.User2ID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, session)
}
