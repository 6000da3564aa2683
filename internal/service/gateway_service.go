package service

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/internal/repository"
	"github.com/valiyev-777/Speaking/pkg/logger"
	"github.com/valiyev-777/Speaking/pkg/metrics"
	"github.com/valiyev-777/Speaking/pkg/ratelimit"
	"go.uber.org/zap"
)

// 채팅/시그널링 폭주 방지. 연결당 아니라 사용자당 버킷
const (
	relayBurst     = 30
	relayPerSecond = 10
)

// GatewayService 연결별 인바운드 메시지 처리기.
// 웹소켓 클라이언트가 {type, data} 봉투를 파싱해 디스패치한다
type GatewayService struct {
	queueRepo    QueueStore
	sessionRepo  SessionStore
	userRepo     UserStore
	notifier     Notifier
	matchmaking  *MatchmakingService
	relayLimiter *ratelimit.RateLimiter
	logger       *zap.Logger
}

func NewGatewayService(
	queueRepo QueueStore,
	sessionRepo SessionStore,
	userRepo UserStore,
	notifier Notifier,
	matchmaking *MatchmakingService,
) *GatewayService {
	return &GatewayService{
		queueRepo:    queueRepo,
		sessionRepo:  sessionRepo,
		userRepo:     userRepo,
		notifier:     notifier,
		matchmaking:  matchmaking,
		relayLimiter: ratelimit.NewRateLimiter(relayBurst, relayPerSecond),
		logger:       logger.Named("gateway"),
	}
}

type joinQueuePayload struct {
	Mode        string   `json:"mode"`
	LevelFilter *float64 `json:"level_filter"`
}

type signalPayload struct {
	TargetUserID string          `json:"target_user_id"`
	Data         json.RawMessage `json:"data"`
}

type endSessionPayload struct {
	SessionID string `json:"session_id"`
}

type chatPayload struct {
	TargetUserID string `json:"target_user_id"`
	Message      string `json:"message"`
}

type invitePayload struct {
	PartnerUserID string `json:"partner_user_id"`
}

type inviteResponsePayload struct {
	InviterUserID string `json:"inviter_user_id"`
	Accepted      bool   `json:"accepted"`
}

// HandleConnect 연결 수락 후 presence 갱신
func (g *GatewayService) HandleConnect(userID string) {
	if err := g.userRepo.SetOnline(userID, true); err != nil {
		g.logger.Error("Failed to set user online", zap.String("userId", userID), zap.Error(err))
	}
}

// HandleDisconnect 연결 종료 정리 단위: presence 오프라인 + 활성 대기열 엔트리 비활성화.
// 클라이언트가 sync.Once로 감싸므로 연결당 정확히 한 번 실행됨
func (g *GatewayService) HandleDisconnect(userID string) {
	// 재연결로 대체된 옛 연결의 정리라면 새 연결 상태를 건드리지 않음
	if g.notifier.IsOnline(userID) {
		return
	}

	if err := g.userRepo.SetOnline(userID, false); err != nil {
		g.logger.Error("Failed to set user offline", zap.String("userId", userID), zap.Error(err))
	}

	if err := g.queueRepo.DeactivateForUser(userID); err != nil {
		g.logger.Error("Failed to deactivate queue entries on disconnect",
			zap.String("userId", userID), zap.Error(err))
	}
}

// knownMessageTypes 수신 메트릭 라벨 허용 목록.
// 클라이언트가 보낸 임의 문자열로 라벨 카디널리티가 늘어나지 않도록 함
var knownMessageTypes = map[string]bool{
	"join_queue":      true,
	"leave_queue":     true,
	"offer":           true,
	"answer":          true,
	"ice_candidate":   true,
	"end_session":     true,
	"chat":            true,
	"invite_partner":  true,
	"invite_response": true,
	"ping":            true,
}

// HandleMessage 인바운드 메시지 디스패치. 알 수 없는 타입은 무시
func (g *GatewayService) HandleMessage(userID, msgType string, data json.RawMessage) {
	label := msgType
	if !knownMessageTypes[msgType] {
		label = "unknown"
	}
	metrics.MessagesReceived.WithLabelValues(label).Inc()

	switch msgType {
	case "join_queue":
		g.handleJoinQueue(userID, data)
	case "leave_queue":
		g.handleLeaveQueue(userID)
	case "offer", "answer", "ice_candidate":
		g.handleSignaling(userID, msgType, data)
	case "end_session":
		g.handleEndSession(userID, data)
	case "chat":
		g.handleChat(userID, data)
	case "invite_partner":
		g.handleInvitePartner(userID, data)
	case "invite_response":
		g.handleInviteResponse(userID, data)
	case "ping":
		g.notifier.SendToUser(userID, map[string]interface{}{"type": "pong"})
	default:
		g.logger.Debug("Ignoring unknown message type",
			zap.String("userId", userID), zap.String("type", msgType))
	}
}

func (g *GatewayService) sendError(userID, message string) {
	g.notifier.SendToUser(userID, map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

func (g *GatewayService) handleJoinQueue(userID string, data json.RawMessage) {
	// data 생략은 빈 객체와 동일 (룰렛 참가)
	var payload joinQueuePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			g.sendError(userID, "Invalid join_queue payload")
			return
		}
	}

	mode := models.ModeRoulette
	var levelFilter *float64
	if payload.Mode == string(models.ModeLevelFilter) {
		mode = models.ModeLevelFilter
		levelFilter = payload.LevelFilter
	}

	existing, err := g.queueRepo.ActiveEntryForUser(userID)
	if err != nil {
		g.logger.Error("Failed to check queue membership", zap.String("userId", userID), zap.Error(err))
		g.sendError(userID, "Failed to join queue")
		return
	}
	if existing != nil {
		g.sendError(userID, "Already in queue")
		return
	}

	if _, err := g.queueRepo.Enqueue(userID, mode, levelFilter); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveEntry) {
			g.sendError(userID, "Already in queue")
			return
		}
		g.logger.Error("Failed to enqueue", zap.String("userId", userID), zap.Error(err))
		g.sendError(userID, "Failed to join queue")
		return
	}

	metrics.QueueJoins.WithLabelValues(string(mode)).Inc()

	g.notifier.SendToUser(userID, map[string]interface{}{
		"type": "queue_joined",
		"data": map[string]interface{}{
			"mode":         string(mode),
			"level_filter": levelFilter,
		},
	})
}

func (g *GatewayService) handleLeaveQueue(userID string) {
	// 활성 엔트리가 없어도 멱등 no-op
	if err := g.queueRepo.DeactivateForUser(userID); err != nil {
		g.logger.Error("Failed to leave queue", zap.String("userId", userID), zap.Error(err))
	}

	g.notifier.SendToUser(userID, map[string]interface{}{"type": "queue_left"})
}

// handleSignaling WebRTC 시그널링 릴레이. 페이로드는 그대로 전달하고
// 발신자 ID만 덧붙임. 수신자가 없으면 조용히 폐기 (fire-and-forget)
func (g *GatewayService) handleSignaling(userID, signalType string, data json.RawMessage) {
	if !g.relayLimiter.Allow(userID) {
		g.logger.Warn("Signaling rate limit exceeded", zap.String("userId", userID))
		return
	}

	var payload signalPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		g.sendError(userID, "Invalid signaling payload")
		return
	}

	if payload.TargetUserID == "" {
		g.sendError(userID, "target_user_id required")
		return
	}

	// 중첩 data가 없으면 봉투 전체를 그대로 릴레이
	relayData := payload.Data
	if len(relayData) == 0 {
		relayData = data
	}

	delivered := g.notifier.SendToUser(payload.TargetUserID, map[string]interface{}{
		"type":         signalType,
		"from_user_id": userID,
		"data":         relayData,
	})

	if !delivered {
		g.logger.Debug("Signaling target not connected, dropped",
			zap.String("from", userID),
			zap.String("to", payload.TargetUserID),
			zap.String("type", signalType))
	}
}

func (g *GatewayService) handleEndSession(userID string, data json.RawMessage) {
	var payload endSessionPayload
	_ = json.Unmarshal(data, &payload)

	if payload.SessionID != "" {
		session, err := g.sessionRepo.FindByID(payload.SessionID)
		if err != nil {
			g.logger.Error("Failed to load session", zap.String("sessionId", payload.SessionID), zap.Error(err))
		}

		if session != nil && session.Status == models.SessionStatusActive {
			completed, err := g.sessionRepo.Complete(session.ID, time.Now().UTC())
			if err != nil {
				g.logger.Error("Failed to complete session", zap.String("sessionId", session.ID), zap.Error(err))
			}

			if completed {
				g.notifier.SendToUser(session.PartnerOf(userID), map[string]interface{}{
					"type": "session_ended",
					"data": map[string]interface{}{"session_id": session.ID},
				})
			}
		}
	}

	// 세션을 못 찾아도 요청자에게는 항상 ack (호출자 관점에서 멱등)
	g.notifier.SendToUser(userID, map[string]interface{}{
		"type": "session_ended",
		"data": map[string]interface{}{"session_id": payload.SessionID},
	})
}

func (g *GatewayService) handleChat(userID string, data json.RawMessage) {
	var payload chatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	if payload.TargetUserID == "" || payload.Message == "" {
		return
	}

	if !g.relayLimiter.Allow(userID) {
		g.logger.Warn("Chat rate limit exceeded", zap.String("userId", userID))
		return
	}

	delivered := g.notifier.SendToUser(payload.TargetUserID, map[string]interface{}{
		"type":         "chat",
		"from_user_id": userID,
		"message":      payload.Message,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})

	if !delivered {
		g.logger.Debug("Chat target not connected, dropped",
			zap.String("from", userID),
			zap.String("to", payload.TargetUserID))
	}
}

func (g *GatewayService) handleInvitePartner(userID string, data json.RawMessage) {
	var payload invitePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.PartnerUserID == "" {
		g.sendError(userID, "partner_user_id required")
		return
	}

	// 초대는 시그널링과 달리 오프라인이면 명시적 에러
	if !g.notifier.IsOnline(payload.PartnerUserID) {
		g.notifier.SendToUser(userID, map[string]interface{}{
			"type":    "invite_error",
			"message": "Partner is offline",
		})
		return
	}

	inviter, err := g.userRepo.FindByID(userID)
	if err != nil || inviter == nil {
		g.logger.Error("Failed to load inviter", zap.String("userId", userID), zap.Error(err))
		return
	}

	g.notifier.SendToUser(payload.PartnerUserID, map[string]interface{}{
		"type":          "partner_invite",
		"from_user_id":  inviter.ID,
		"from_username": inviter.Username,
		"from_level":    inviter.CurrentLevel,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})

	g.notifier.SendToUser(userID, map[string]interface{}{
		"type":    "invite_sent",
		"message": "Invite sent",
	})
}

func (g *GatewayService) handleInviteResponse(userID string, data json.RawMessage) {
	var payload inviteResponsePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.InviterUserID == "" {
		return
	}

	if !payload.Accepted {
		g.notifier.SendToUser(payload.InviterUserID, map[string]interface{}{
			"type":    "invite_rejected",
			"message": "Invite rejected",
		})
		return
	}

	inviter, err := g.userRepo.FindByID(payload.InviterUserID)
	if err != nil || inviter == nil {
		g.logger.Warn("Invite accept for unknown inviter",
			zap.String("inviterId", payload.InviterUserID), zap.Error(err))
		return
	}
	accepter, err := g.userRepo.FindByID(userID)
	if err != nil || accepter == nil {
		g.logger.Warn("Invite accept by unknown user", zap.String("userId", userID), zap.Error(err))
		return
	}

	// 초대자가 user1 = initiator가 되도록 세션 생성
	session, err := g.sessionRepo.CreateDirect(inviter.ID, accepter.ID, models.ModeRoulette)
	if err != nil {
		g.logger.Error("Failed to create invite session",
			zap.String("inviter", inviter.ID),
			zap.String("accepter", accepter.ID),
			zap.Error(err))
		g.notifier.SendToUser(userID, map[string]interface{}{
			"type":    "invite_error",
			"message": "Failed to create session",
		})
		return
	}

	metrics.MatchesCreated.WithLabelValues(string(session.Mode)).Inc()

	g.logger.Info("Invite session created",
		zap.String("sessionId", session.ID),
		zap.String("inviter", inviter.ID),
		zap.String("accepter", accepter.ID))

	g.matchmaking.NotifyMatch(session)
}
