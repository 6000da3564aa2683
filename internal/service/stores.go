package service

import (
	"time"

	"github.com/valiyev-777/Speaking/internal/models"
)

// 서비스가 소비하는 저장소 연산. 실제 구현은 repository 패키지,
// 테스트에서는 인메모리 더블을 주입한다.

// QueueStore 대기열 엔트리 저장소
type QueueStore interface {
	Enqueue(userID string, mode models.QueueMode, levelFilter *float64) (*models.QueueEntry, error)
	ListActive(mode models.QueueMode) ([]models.QueueEntry, error)
	ActiveEntryForUser(userID string) (*models.QueueEntry, error)
	DeactivateForUser(userID string) error
}

// SessionStore 세션 저장소
type SessionStore interface {
	CreateMatch(entry1, entry2 *models.QueueEntry) (*models.Session, error)
	CreateDirect(user1ID, user2ID string, mode models.QueueMode) (*models.Session, error)
	FindByID(id string) (*models.Session, error)
	Complete(id string, endedAt time.Time) (bool, error)
}

// UserStore 사용자 조회 및 접속 상태 갱신
type UserStore interface {
	FindByID(id string) (*models.User, error)
	SetOnline(id string, online bool) error
}

// UserAccountStore 계정 관리용 저장소 연산 (UserService 소비)
type UserAccountStore interface {
	Create(email, passwordHash, username string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	FindByID(id string) (*models.User, error)
	Update(id string, req *models.UpdateUserRequest) (*models.User, error)
	List(onlineOnly bool, limit, offset int) ([]models.User, error)
	CountOnline() (int, error)
}

// UserDirectory 파트너 흐름에서 쓰는 사용자 조회
type UserDirectory interface {
	FindByID(id string) (*models.User, error)
	SearchByUsername(q, excludeUserID string, limit int) ([]models.User, error)
}

// PartnershipStore 파트너 요청/관계 저장소
type PartnershipStore interface {
	CreateRequest(fromUserID, toUserID string) (*models.PartnerRequest, error)
	FindRequestByID(id string) (*models.PartnerRequest, error)
	PendingRequestExists(userA, userB string) (bool, error)
	UpdateRequestStatus(id string, status models.PartnerRequestStatus) (bool, error)
	ListIncomingRequests(userID string) ([]models.PartnerRequest, error)
	CreatePartnership(user1ID, user2ID string) (*models.Partnership, error)
	PartnershipExists(userA, userB string) (bool, error)
	Delete(userA, userB string) (bool, error)
	ListPartners(userID string) ([]models.User, error)
	PartnerIDs(userID string) (map[string]bool, error)
	PendingRequestTargets(userID string) (map[string]bool, error)
}

// Notifier 연결된 사용자에게 아웃바운드 메시지를 전달하는 핸들.
// 전달은 fire-and-forget: 수신자가 없거나 버퍼가 가득 차면 false
type Notifier interface {
	SendToUser(userID string, payload interface{}) bool
	IsOnline(userID string) bool
}
