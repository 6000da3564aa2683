package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/valiyev-777/Speaking/internal/service"
	"github.com/valiyev-777/Speaking/pkg/logger"
)

// PartnerHandler 파트너 검색/요청/응답 API
type PartnerHandler struct {
	partnerService *service.PartnerService
}

func NewPartnerHandler(partnerService *service.PartnerService) *PartnerHandler {
	return &PartnerHandler{partnerService: partnerService}
}

type SendPartnerRequestBody struct {
	TargetUserID string `json:"target_user_id" binding:"required"`
}

type RespondPartnerRequestBody struct {
	Accept bool `json:"accept"`
}

// Search 사용자명으로 파트너 후보 검색 (최소 두 글자)
func (h *PartnerHandler) Search(c *gin.Context) {
	userID := c.GetString("userID")
	query := c.Query("q")

	if len(query) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query must be at least 2 characters"})
		return
	}

	results, err := h.partnerService.Search(userID, query)
	if err != nil {
		logger.Error("Partner search failed", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SendRequest 파트너 요청 전송
func (h *PartnerHandler) SendRequest(c *gin.Context) {
	userID := c.GetString("userID")

	var body SendPartnerRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.partnerService.SendRequest(userID, body.TargetUserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot send a partner request to yourself"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, service.ErrAlreadyPartners):
			c.JSON(http.StatusConflict, gin.H{"error": "You are already partners"})
		case errors.Is(err, service.ErrRequestPending):
			c.JSON(http.StatusConflict, gin.H{"error": "A request is already pending"})
		default:
			logger.Error("Failed to send partner request", "userId", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send request"})
		}
		return
	}

	c.JSON(http.StatusCreated, request)
}

// Respond 받은 파트너 요청 수락/거절
func (h *PartnerHandler) Respond(c *gin.Context) {
	userID := c.GetString("userID")
	requestID := c.Param("id")

	var body RespondPartnerRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.partnerService.Respond(requestID, userID, body.Accept); err != nil {
		switch {
		case errors.Is(err, service.ErrPartnerRequestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		case errors.Is(err, service.ErrNotRequestRecipient):
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not the recipient of this request"})
		default:
			logger.Error("Failed to respond to partner request", "userId", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to respond to request"})
		}
		return
	}

	status := "rejected"
	if body.Accept {
		status = "accepted"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// RemovePartner 파트너 관계 해제
func (h *PartnerHandler) RemovePartner(c *gin.Context) {
	userID := c.GetString("userID")
	partnerID := c.Param("id")

	if err := h.partnerService.RemovePartner(userID, partnerID); err != nil {
		if errors.Is(err, service.ErrPartnershipNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Partnership not found"})
			return
		}
		logger.Error("Failed to remove partner", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove partner"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// ListPartners 확정된 파트너 목록
func (h *PartnerHandler) ListPartners(c *gin.Context) {
	userID := c.GetString("userID")

	partners, err := h.partnerService.ListPartners(userID)
	if err != nil {
		logger.Error("Failed to list partners", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list partners"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"partners": partners})
}

// ListIncomingRequests 대기 중인 받은 요청 목록
func (h *PartnerHandler) ListIncomingRequests(c *gin.Context) {
	userID := c.GetString("userID")

	requests, err := h.partnerService.ListIncomingRequests(userID)
	if err != nil {
		logger.Error("Failed to list partner requests", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}
