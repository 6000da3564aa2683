package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/pkg/metrics"
)

func newTestGateway(store *fakeStore, users *fakeUserStore, notifier *fakeNotifier) *GatewayService {
	matchmaking := newTestMatchmaking(store, users, notifier, 0.5)
	return NewGatewayService(store, store, users, notifier, matchmaking)
}

func TestJoinQueueMessage(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	users.addUser("a", "alice", 6.0)
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "join_queue", json.RawMessage(`{"mode":"roulette"}`))

	entry, err := store.ActiveEntryForUser("a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.ModeRoulette, entry.Mode)

	ack := notifier.lastOfType(t, "a", "queue_joined")
	require.NotNil(t, ack)
	assert.Equal(t, "roulette", ack["data"].(map[string]interface{})["mode"])
}

func TestJoinQueueNoDataDefaultsToRoulette(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	users.addUser("a", "alice", 6.0)
	gw := newTestGateway(store, users, notifier)

	// data 없이도 룰렛 참가로 처리
	gw.HandleMessage("a", "join_queue", nil)

	entry, err := store.ActiveEntryForUser("a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.ModeRoulette, entry.Mode)
	assert.Nil(t, entry.LevelFilter)

	assert.NotNil(t, notifier.lastOfType(t, "a", "queue_joined"))
	assert.Nil(t, notifier.lastOfType(t, "a", "error"))
}

func TestJoinQueueLevelFilter(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	users.addUser("a", "alice", 6.0)
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "join_queue", json.RawMessage(`{"mode":"level_filter","level_filter":6.5}`))

	entry, err := store.ActiveEntryForUser("a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.ModeLevelFilter, entry.Mode)
	require.NotNil(t, entry.LevelFilter)
	assert.Equal(t, 6.5, *entry.LevelFilter)
}

func TestJoinQueueTwiceRejected(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	users.addUser("a", "alice", 6.0)
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "join_queue", json.RawMessage(`{"mode":"roulette"}`))
	gw.HandleMessage("a", "join_queue", json.RawMessage(`{"mode":"roulette"}`))

	errMsg := notifier.lastOfType(t, "a", "error")
	require.NotNil(t, errMsg)
	assert.Equal(t, "Already in queue", errMsg["message"])
}

func TestLeaveQueueIdempotent(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	users.addUser("a", "alice", 6.0)
	gw := newTestGateway(store, users, notifier)

	// 대기열에 없어도 ack
	gw.HandleMessage("a", "leave_queue", nil)
	assert.NotNil(t, notifier.lastOfType(t, "a", "queue_left"))

	gw.HandleMessage("a", "join_queue", json.RawMessage(`{"mode":"roulette"}`))
	gw.HandleMessage("a", "leave_queue", nil)

	entry, err := store.ActiveEntryForUser("a")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSignalingRelayVerbatim(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	gw := newTestGateway(store, users, notifier)

	sdp := `{"sdp":"v=0 o=- 123","type":"offer","nested":{"k":[1,2,3]}}`
	gw.HandleMessage("a", "offer", json.RawMessage(`{"target_user_id":"b","data":`+sdp+`}`))

	relayed := notifier.lastOfType(t, "b", "offer")
	require.NotNil(t, relayed)
	assert.Equal(t, "a", relayed["from_user_id"])

	// 페이로드는 손대지 않고 그대로 전달
	raw, err := json.Marshal(relayed["data"])
	require.NoError(t, err)
	assert.JSONEq(t, sdp, string(raw))
}

func TestSignalingNoNestedDataRelaysEnvelope(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	gw := newTestGateway(store, users, notifier)

	// 중첩 data 키가 없으면 봉투 전체가 그대로 전달됨
	payload := `{"target_user_id":"b","sdp":"v=0 o=- 456"}`
	gw.HandleMessage("a", "offer", json.RawMessage(payload))

	relayed := notifier.lastOfType(t, "b", "offer")
	require.NotNil(t, relayed)

	raw, err := json.Marshal(relayed["data"])
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(raw))
}

func TestSignalingMissingTarget(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "ice_candidate", json.RawMessage(`{"data":{"candidate":"x"}}`))

	errMsg := notifier.lastOfType(t, "a", "error")
	require.NotNil(t, errMsg)
	assert.Equal(t, "target_user_id required", errMsg["message"])
}

func TestSignalingOfflineTargetDropped(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "answer", json.RawMessage(`{"target_user_id":"b","data":{}}`))

	// 발신자에게 에러 없이 조용히 폐기
	assert.Nil(t, notifier.lastOfType(t, "a", "error"))
	assert.Empty(t, notifier.messages(t, "b"))
}

func TestSignalingRateLimited(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	gw := newTestGateway(store, users, notifier)

	for i := 0; i < 100; i++ {
		gw.HandleMessage("a", "ice_candidate", json.RawMessage(`{"target_user_id":"b","data":{}}`))
	}

	// 버킷 용량을 넘긴 분량은 폐기됨
	assert.Less(t, len(notifier.messages(t, "b")), 100)
}

func TestEndSessionNotifiesPartner(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.0)
	session, err := store.CreateDirect("a", "b", models.ModeRoulette)
	require.NoError(t, err)
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "end_session", json.RawMessage(`{"session_id":"`+session.ID+`"}`))

	partnerMsg := notifier.lastOfType(t, "b", "session_ended")
	require.NotNil(t, partnerMsg)
	assert.Equal(t, session.ID, partnerMsg["data"].(map[string]interface{})["session_id"])

	assert.NotNil(t, notifier.lastOfType(t, "a", "session_ended"))

	stored, err := store.FindByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, stored.Status)
	assert.NotNil(t, stored.EndedAt)
}

func TestEndSessionAlreadyCompleted(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	session, err := store.CreateDirect("a", "b", models.ModeRoulette)
	require.NoError(t, err)
	_, err = store.Complete(session.ID, time.Now())
	require.NoError(t, err)
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "end_session", json.RawMessage(`{"session_id":"`+session.ID+`"}`))

	// 이미 종료된 세션: 상대방 통지는 없고 요청자 ack만
	assert.Empty(t, notifier.messages(t, "b"))
	assert.NotNil(t, notifier.lastOfType(t, "a", "session_ended"))
}

func TestEndSessionUnknownIDStillAcked(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "end_session", json.RawMessage(`{"session_id":"nope"}`))

	assert.NotNil(t, notifier.lastOfType(t, "a", "session_ended"))
}

func TestChatRelay(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "chat", json.RawMessage(`{"target_user_id":"b","message":"hello"}`))

	msg := notifier.lastOfType(t, "b", "chat")
	require.NotNil(t, msg)
	assert.Equal(t, "a", msg["from_user_id"])
	assert.Equal(t, "hello", msg["message"])
	assert.NotEmpty(t, msg["timestamp"])
}

func TestChatEmptyMessageIgnored(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "chat", json.RawMessage(`{"target_user_id":"b","message":""}`))
	gw.HandleMessage("a", "chat", json.RawMessage(`{"message":"no target"}`))

	assert.Empty(t, notifier.messages(t, "b"))
	assert.Empty(t, notifier.messages(t, "a"))
}

func TestPingPong(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "ping", nil)

	assert.NotNil(t, notifier.lastOfType(t, "a", "pong"))
}

func TestUnknownMessageTypeIgnored(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "bogus_type", json.RawMessage(`{"x":1}`))

	assert.Empty(t, notifier.messages(t, "a"))
}

func TestUnknownMessageTypeCountedAsUnknown(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	gw := newTestGateway(store, users, notifier)

	// 클라이언트가 보낸 임의 문자열이 라벨로 새지 않음
	before := testutil.ToFloat64(metrics.MessagesReceived.WithLabelValues("unknown"))
	gw.HandleMessage("a", "totally_made_up_type_9000", json.RawMessage(`{}`))
	after := testutil.ToFloat64(metrics.MessagesReceived.WithLabelValues("unknown"))

	assert.Equal(t, before+1, after)
	assert.Equal(t, float64(0),
		testutil.ToFloat64(metrics.MessagesReceived.WithLabelValues("totally_made_up_type_9000")))
}

func TestInvitePartnerOffline(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.0)
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "invite_partner", json.RawMessage(`{"partner_user_id":"b"}`))

	errMsg := notifier.lastOfType(t, "a", "invite_error")
	require.NotNil(t, errMsg)
	assert.Equal(t, "Partner is offline", errMsg["message"])
}

func TestInvitePartnerForwarded(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	users.addUser("a", "alice", 6.5)
	users.addUser("b", "bob", 6.0)
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("a", "invite_partner", json.RawMessage(`{"partner_user_id":"b"}`))

	invite := notifier.lastOfType(t, "b", "partner_invite")
	require.NotNil(t, invite)
	assert.Equal(t, "a", invite["from_user_id"])
	assert.Equal(t, "alice", invite["from_username"])
	assert.Equal(t, 6.5, invite["from_level"])

	assert.NotNil(t, notifier.lastOfType(t, "a", "invite_sent"))
}

func TestInviteResponseRejected(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.0)
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("b", "invite_response", json.RawMessage(`{"inviter_user_id":"a","accepted":false}`))

	assert.NotNil(t, notifier.lastOfType(t, "a", "invite_rejected"))
	assert.Equal(t, 0, store.sessionCount())
}

func TestInviteResponseAcceptedCreatesSession(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a", "b")
	users.addUser("a", "alice", 6.0)
	users.addUser("b", "bob", 6.0)
	gw := newTestGateway(store, users, notifier)

	gw.HandleMessage("b", "invite_response", json.RawMessage(`{"inviter_user_id":"a","accepted":true}`))

	sessions := store.sessionsOrdered()
	require.Len(t, sessions, 1)
	// 초대자가 user1 = initiator
	assert.Equal(t, "a", sessions[0].User1ID)
	assert.Equal(t, "b", sessions[0].User2ID)

	matchedA := notifier.lastOfType(t, "a", "matched")
	require.NotNil(t, matchedA)
	assert.Equal(t, true, matchedA["data"].(map[string]interface{})["is_initiator"])

	matchedB := notifier.lastOfType(t, "b", "matched")
	require.NotNil(t, matchedB)
	assert.Equal(t, false, matchedB["data"].(map[string]interface{})["is_initiator"])
}

func TestDisconnectCleansUp(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	users.addUser("a", "alice", 6.0)
	gw := newTestGateway(store, users, notifier)

	gw.HandleConnect("a")
	gw.HandleMessage("a", "join_queue", json.RawMessage(`{"mode":"roulette"}`))

	notifier.setOnline("a", false)
	gw.HandleDisconnect("a")

	entry, err := store.ActiveEntryForUser("a")
	require.NoError(t, err)
	assert.Nil(t, entry, "disconnect deactivates queue entries")

	assert.False(t, users.isOnline("a"))
}

func TestDisconnectSkippedAfterReconnect(t *testing.T) {
	store := newFakeStore()
	users := newFakeUserStore()
	notifier := newFakeNotifier("a")
	users.addUser("a", "alice", 6.0)
	gw := newTestGateway(store, users, notifier)

	gw.HandleConnect("a")
	gw.HandleMessage("a", "join_queue", json.RawMessage(`{"mode":"roulette"}`))

	// 새 연결이 이미 등록된 상태에서 옛 연결의 정리가 실행됨
	gw.HandleDisconnect("a")

	entry, err := store.ActiveEntryForUser("a")
	require.NoError(t, err)
	assert.NotNil(t, entry, "reconnected user keeps queue entry")

	assert.True(t, users.isOnline("a"))
}
