package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/internal/repository"
	"github.com/valiyev-777/Speaking/pkg/distributed"
	"github.com/valiyev-777/Speaking/pkg/logger"
	"github.com/valiyev-777/Speaking/pkg/metrics"
	"go.uber.org/zap"
)

// MatchedData matched 이벤트 페이로드
type MatchedData struct {
	PartnerID       string  `json:"partner_id"`
	PartnerUsername string  `json:"partner_username"`
	PartnerLevel    float64 `json:"partner_level"`
	RoomID          string  `json:"room_id"`
	SessionID       string  `json:"session_id"`
	IsInitiator     bool    `json:"is_initiator"`
}

// TickLocker 멀티 인스턴스 환경에서 한 틱을 한 인스턴스만 실행하도록 하는 락
type TickLocker interface {
	TryAcquire(ctx context.Context) error
	Release(ctx context.Context) error
}

type MatchmakingService struct {
	queueRepo   QueueStore
	sessionRepo SessionStore
	userRepo    UserStore
	notifier    Notifier
	logger      *zap.Logger
	interval    time.Duration
	tolerance   float64
	tickLock    TickLocker // nil이면 단일 인스턴스 모드
	stopChan    chan struct{}
	wg          sync.WaitGroup
	running     bool
	mu          sync.Mutex
}

func NewMatchmakingService(
	queueRepo QueueStore,
	sessionRepo SessionStore,
	userRepo UserStore,
	notifier Notifier,
	interval time.Duration,
	tolerance float64,
) *MatchmakingService {
	return &MatchmakingService{
		queueRepo:   queueRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		logger:      logger.Named("matchmaking"),
		interval:    interval,
		tolerance:   tolerance,
	}
}

// SetTickLock 분산 틱 락 설정 (Redis 사용 시)
func (s *MatchmakingService) SetTickLock(lock TickLocker) {
	s.tickLock = lock
}

// Start 매칭 스케줄러 시작. Stop 이후 재시작 가능
func (s *MatchmakingService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	// Stop이 닫은 채널을 재사용하지 않도록 시작마다 새로 만듦
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.logger.Info("Starting MatchmakingService", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.matchmakingLoop(stop)
}

// Stop 매칭 스케줄러 중지. 진행 중인 틱이 끝날 때까지 블록
func (s *MatchmakingService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop := s.stopChan
	s.mu.Unlock()

	s.logger.Info("Stopping MatchmakingService")
	close(stop)
	s.wg.Wait()
	s.logger.Info("MatchmakingService stopped")
}

// matchmakingLoop 주기적 매칭 실행. 틱은 이 고루틴에서만 돌므로 겹치지 않음
func (s *MatchmakingService) matchmakingLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunTick()
		case <-stop:
			return
		}
	}
}

// RunTick 한 번의 페어링 패스 실행. 에러는 기록만 하고 다음 틱은 예정대로 진행
func (s *MatchmakingService) RunTick() {
	if s.tickLock != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.tickLock.TryAcquire(ctx); err != nil {
			if errors.Is(err, distributed.ErrLockNotAcquired) {
				s.logger.Debug("Tick lock held by another instance, skipping")
			} else {
				s.logger.Error("Failed to acquire tick lock", zap.Error(err))
			}
			return
		}
		defer func() {
			if err := s.tickLock.Release(ctx); err != nil {
				s.logger.Warn("Failed to release tick lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	s.matchRoulette()
	s.matchLevelFilter()
	metrics.TickDuration.Observe(time.Since(start).Seconds())
}

// matchRoulette 룰렛 모드: 참가 순서대로 둘씩 짝지음. 홀수 인원이면 마지막은 대기 유지
func (s *MatchmakingService) matchRoulette() {
	entries, err := s.queueRepo.ListActive(models.ModeRoulette)
	if err != nil {
		s.logger.Error("Failed to load roulette queue", zap.Error(err))
		return
	}

	if len(entries) > 0 {
		s.logger.Debug("Roulette queue loaded", zap.Int("waiting", len(entries)))
	}

	for i := 0; i+1 < len(entries); i += 2 {
		s.createMatch(&entries[i], &entries[i+1])
	}
}

// matchLevelFilter 레벨 필터 모드: 참가 순서대로 순회하며
// 허용 오차 내 첫 번째 상대와 짝지음 (first-fit, 최적 매칭 아님)
func (s *MatchmakingService) matchLevelFilter() {
	entries, err := s.queueRepo.ListActive(models.ModeLevelFilter)
	if err != nil {
		s.logger.Error("Failed to load level-filter queue", zap.Error(err))
		return
	}

	if len(entries) > 0 {
		s.logger.Debug("Level-filter queue loaded", zap.Int("waiting", len(entries)))
	}

	matched := make(map[string]bool)

	for i := range entries {
		if matched[entries[i].ID] {
			continue
		}

		for j := i + 1; j < len(entries); j++ {
			if matched[entries[j].ID] {
				continue
			}

			if math.Abs(entries[i].Level()-entries[j].Level()) <= s.tolerance {
				s.createMatch(&entries[i], &entries[j])
				matched[entries[i].ID] = true
				matched[entries[j].ID] = true
				break
			}
		}
	}
}

// createMatch 한 쌍 커밋 및 통지. 엔트리가 이미 소비됐으면 조용히 건너뜀
func (s *MatchmakingService) createMatch(entry1, entry2 *models.QueueEntry) {
	session, err := s.sessionRepo.CreateMatch(entry1, entry2)
	if err != nil {
		if errors.Is(err, repository.ErrEntryClaimed) {
			// 탈퇴/연결 종료/다른 패스가 먼저 소비한 엔트리. 매칭하지 않음
			s.logger.Debug("Skipping pair, entry already claimed",
				zap.String("entry1", entry1.ID),
				zap.String("entry2", entry2.ID))
			return
		}
		s.logger.Error("Failed to create match",
			zap.String("user1", entry1.UserID),
			zap.String("user2", entry2.UserID),
			zap.Error(err))
		return
	}

	metrics.MatchesCreated.WithLabelValues(string(session.Mode)).Inc()

	s.logger.Info("Match created",
		zap.String("sessionId", session.ID),
		zap.String("roomId", session.RoomID),
		zap.String("user1", session.User1ID),
		zap.String("user2", session.User2ID),
		zap.String("mode", string(session.Mode)))

	s.NotifyMatch(session)
}

// NotifyMatch 매칭 양측에 matched 이벤트 전달 (best-effort).
// user1이 WebRTC offer를 시작하는 initiator
func (s *MatchmakingService) NotifyMatch(session *models.Session) {
	user1, err := s.userRepo.FindByID(session.User1ID)
	if err != nil || user1 == nil {
		s.logger.Error("Failed to load user for notification",
			zap.String("userId", session.User1ID), zap.Error(err))
		return
	}
	user2, err := s.userRepo.FindByID(session.User2ID)
	if err != nil || user2 == nil {
		s.logger.Error("Failed to load user for notification",
			zap.String("userId", session.User2ID), zap.Error(err))
		return
	}

	s.notifyOne(user1.ID, user2, session, true)
	s.notifyOne(user2.ID, user1, session, false)
}

func (s *MatchmakingService) notifyOne(userID string, partner *models.User, session *models.Session, initiator bool) {
	delivered := s.notifier.SendToUser(userID, map[string]interface{}{
		"type": "matched",
		"data": MatchedData{
			PartnerID:       partner.ID,
			PartnerUsername: partner.Username,
			PartnerLevel:    partner.CurrentLevel,
			RoomID:          session.RoomID,
			SessionID:       session.ID,
			IsInitiator:     initiator,
		},
	})

	if !delivered {
		// 매칭은 이미 커밋됨. 유저는 재접속 후 세션 상태 조회로 확인
		s.logger.Warn("Match notification not delivered",
			zap.String("userId", userID),
			zap.String("sessionId", session.ID))
	}
}
