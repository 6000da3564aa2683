package models

import "time"

type PartnerRequestStatus string

const (
	RequestStatusPending  PartnerRequestStatus = "pending"
	RequestStatusAccepted PartnerRequestStatus = "accepted"
	RequestStatusRejected PartnerRequestStatus = "rejected"
)

// PartnerRequest 파트너 요청 (친구 요청)
type PartnerRequest struct {
	ID         string               `json:"id" db:"id"`
	FromUserID string               `json:"fromUserId" db:"from_user_id"`
	ToUserID   string               `json:"toUserId" db:"to_user_id"`
	Status     PartnerRequestStatus `json:"status" db:"status"`
	CreatedAt  time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time            `json:"updatedAt" db:"updated_at"`
}

// Partnership 수락된 파트너 관계
type Partnership struct {
	ID        string    `json:"id" db:"id"`
	User1ID   string    `json:"user1Id" db:"user1_id"`
	User2ID   string    `json:"user2Id" db:"user2_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// PartnerSearchResult 사용자 검색 결과 (파트너/요청 상태 포함)
type PartnerSearchResult struct {
	ID                string  `json:"id"`
	Username          string  `json:"username"`
	CurrentLevel      float64 `json:"currentLevel"`
	IsOnline          bool    `json:"isOnline"`
	IsPartner         bool    `json:"isPartner"`
	HasPendingRequest bool    `json:"hasPendingRequest"`
}
