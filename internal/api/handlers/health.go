package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/valiyev-777/Speaking/pkg/database"
)

// HealthHandler 헬스 체크 엔드포인트
type HealthHandler struct {
	db *database.DB
}

func NewHealthHandler(db *database.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health GET /health — DB 연결 상태까지 확인
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "down",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}
