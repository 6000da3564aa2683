package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valiyev-777/Speaking/internal/models"
)

// fakePartnershipStore 파트너 요청/관계 인메모리 더블
type fakePartnershipStore struct {
	mu           sync.Mutex
	requests     map[string]*models.PartnerRequest
	partnerships map[string]bool // "a|b" 정렬된 키
	seq          int
}

func newFakePartnershipStore() *fakePartnershipStore {
	return &fakePartnershipStore{
		requests:     make(map[string]*models.PartnerRequest),
		partnerships: make(map[string]bool),
	}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (f *fakePartnershipStore) CreateRequest(fromUserID, toUserID string) (*models.PartnerRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	request := &models.PartnerRequest{
		ID:         fmt.Sprintf("req-%d", f.seq),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     models.RequestStatusPending,
		CreatedAt:  time.Now(),
	}
	f.requests[request.ID] = request
	copied := *request
	return &copied, nil
}

func (f *fakePartnershipStore) FindRequestByID(id string) (*models.PartnerRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	request, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	copied := *request
	return &copied, nil
}

func (f *fakePartnershipStore) PendingRequestExists(userA, userB string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.requests {
		if r.Status != models.RequestStatusPending {
			continue
		}
		if pairKey(r.FromUserID, r.ToUserID) == pairKey(userA, userB) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePartnershipStore) UpdateRequestStatus(id string, status models.PartnerRequestStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	request, ok := f.requests[id]
	if !ok || request.Status != models.RequestStatusPending {
		return false, nil
	}
	request.Status = status
	return true, nil
}

func (f *fakePartnershipStore) ListIncomingRequests(userID string) ([]models.PartnerRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.PartnerRequest
	for i := 1; i <= f.seq; i++ {
		r, ok := f.requests[fmt.Sprintf("req-%d", i)]
		if ok && r.ToUserID == userID && r.Status == models.RequestStatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakePartnershipStore) CreatePartnership(user1ID, user2ID string) (*models.Partnership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	f.partnerships[pairKey(user1ID, user2ID)] = true
	return &models.Partnership{
		ID:        fmt.Sprintf("pt-%d", f.seq),
		User1ID:   user1ID,
		User2ID:   user2ID,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakePartnershipStore) PartnershipExists(userA, userB string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.partnerships[pairKey(userA, userB)], nil
}

func (f *fakePartnershipStore) Delete(userA, userB string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := pairKey(userA, userB)
	if !f.partnerships[key] {
		return false, nil
	}
	delete(f.partnerships, key)
	return true, nil
}

func (f *fakePartnershipStore) ListPartners(userID string) ([]models.User, error) {
	return nil, nil
}

func (f *fakePartnershipStore) PartnerIDs(userID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]bool)
	for key := range f.partnerships {
		a, b, _ := strings.Cut(key, "|")
		if a == userID {
			out[b] = true
		} else if b == userID {
			out[a] = true
		}
	}
	return out, nil
}

func (f *fakePartnershipStore) PendingRequestTargets(userID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]bool)
	for _, r := range f.requests {
		if r.FromUserID == userID && r.Status == models.RequestStatusPending {
			out[r.ToUserID] = true
		}
	}
	return out, nil
}

func newTestPartnerService() (*PartnerService, *fakePartnershipStore, *fakeUserStore) {
	partnerships := newFakePartnershipStore()
	users := newFakeUserStore()
	return NewPartnerService(partnerships, users), partnerships, users
}

func TestSendRequestAndAccept(t *testing.T) {
	svc, partnerships, users := newTestPartnerService()
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.5)

	request, err := svc.SendRequest("a", "b")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)

	require.NoError(t, svc.Respond(request.ID, "b", true))

	exists, err := partnerships.PartnershipExists("a", "b")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSendRequestToSelf(t *testing.T) {
	svc, _, users := newTestPartnerService()
	users.addUser("a", "alice", 6.0)

	_, err := svc.SendRequest("a", "a")
	assert.ErrorIs(t, err, ErrSelfRequest)
}

func TestSendRequestUnknownTarget(t *testing.T) {
	svc, _, users := newTestPartnerService()
	users.addUser("a", "alice", 6.0)

	_, err := svc.SendRequest("a", "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSendRequestDuplicatePending(t *testing.T) {
	svc, _, users := newTestPartnerService()
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.0)

	_, err := svc.SendRequest("a", "b")
	require.NoError(t, err)

	_, err = svc.SendRequest("a", "b")
	assert.ErrorIs(t, err, ErrRequestPending)

	// 역방향도 동일한 대기 요청으로 간주
	_, err = svc.SendRequest("b", "a")
	assert.ErrorIs(t, err, ErrRequestPending)
}

func TestSendRequestAlreadyPartners(t *testing.T) {
	svc, partnerships, users := newTestPartnerService()
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.0)
	_, err := partnerships.CreatePartnership("a", "b")
	require.NoError(t, err)

	_, err = svc.SendRequest("a", "b")
	assert.ErrorIs(t, err, ErrAlreadyPartners)
}

func TestRespondWrongRecipient(t *testing.T) {
	svc, _, users := newTestPartnerService()
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.0)
	users.addUser("c", "carol", 6.0)

	request, err := svc.SendRequest("a", "b")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Respond(request.ID, "c", true), ErrNotRequestRecipient)
}

func TestRespondRejectedNoPartnership(t *testing.T) {
	svc, partnerships, users := newTestPartnerService()
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.0)

	request, err := svc.SendRequest("a", "b")
	require.NoError(t, err)

	require.NoError(t, svc.Respond(request.ID, "b", false))

	exists, err := partnerships.PartnershipExists("a", "b")
	require.NoError(t, err)
	assert.False(t, exists)

	// 이미 처리된 요청에 다시 응답하면 not found
	assert.ErrorIs(t, svc.Respond(request.ID, "b", true), ErrPartnerRequestNotFound)
}

func TestRemovePartner(t *testing.T) {
	svc, partnerships, users := newTestPartnerService()
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.0)
	_, err := partnerships.CreatePartnership("a", "b")
	require.NoError(t, err)

	require.NoError(t, svc.RemovePartner("b", "a")) // 양방향 해제

	exists, err := partnerships.PartnershipExists("a", "b")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRemovePartnerNotFound(t *testing.T) {
	svc, _, users := newTestPartnerService()
	users.addUser("a", "alice", 6.0)

	assert.ErrorIs(t, svc.RemovePartner("a", "stranger"), ErrPartnershipNotFound)
}
