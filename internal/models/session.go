package models

import "time"

type QueueMode string

const (
	ModeRoulette    QueueMode = "roulette"
	ModeLevelFilter QueueMode = "level_filter"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// DefaultLevel 레벨 미지정 사용자의 매칭 기준값
const DefaultLevel = 6.0

// QueueEntry 매칭 대기열 엔트리. 사용자당 활성 엔트리는 최대 1개
type QueueEntry struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Mode        QueueMode `json:"mode" db:"mode"`
	LevelFilter *float64  `json:"levelFilter,omitempty" db:"level_filter"` // level_filter 모드에서만 사용
	JoinedAt    time.Time `json:"joinedAt" db:"joined_at"`
	IsActive    bool      `json:"isActive" db:"is_active"`
}

// Level 매칭에 사용할 레벨 (미지정이면 DefaultLevel)
func (e *QueueEntry) Level() float64 {
	if e.LevelFilter == nil {
		return DefaultLevel
	}
	return *e.LevelFilter
}

// Session 매칭된 두 사용자의 통화 세션
type Session struct {
	ID        string        `json:"id" db:"id"`
	User1ID   string        `json:"user1Id" db:"user1_id"`
	User2ID   string        `json:"user2Id" db:"user2_id"`
	Mode      QueueMode     `json:"mode" db:"mode"`
	RoomID    string        `json:"roomId" db:"room_id"` // WebRTC 룸 식별용 고유 토큰
	Status    SessionStatus `json:"status" db:"status"`
	StartedAt time.Time     `json:"startedAt" db:"started_at"`
	EndedAt   *time.Time    `json:"endedAt,omitempty" db:"ended_at"`
}

// PartnerOf 세션에서 주어진 사용자의 상대방 ID
func (s *Session) PartnerOf(userID string) string {
	if s.User1ID == userID {
		return s.User2ID
	}
	return s.User1ID
}
