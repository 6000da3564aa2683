package service

import (
	"fmt"

	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/pkg/logger"
	"go.uber.org/zap"
)

// PartnerService 파트너 요청/관계 관리 (친구 목록 흐름)
type PartnerService struct {
	partnershipRepo PartnershipStore
	userRepo        UserDirectory
	logger          *zap.Logger
}

func NewPartnerService(
	partnershipRepo PartnershipStore,
	userRepo UserDirectory,
) *PartnerService {
	return &PartnerService{
		partnershipRepo: partnershipRepo,
		userRepo:        userRepo,
		logger:          logger.Named("partner"),
	}
}

// Search 사용자명 검색. 파트너 여부와 대기 중 요청 여부를 함께 표시
func (s *PartnerService) Search(userID, q string) ([]models.PartnerSearchResult, error) {
	users, err := s.userRepo.SearchByUsername(q, userID, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	partnerIDs, err := s.partnershipRepo.PartnerIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load partner ids: %w", err)
	}

	pendingTargets, err := s.partnershipRepo.PendingRequestTargets(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending targets: %w", err)
	}

	results := make([]models.PartnerSearchResult, 0, len(users))
	for _, user := range users {
		results = append(results, models.PartnerSearchResult{
			ID:                user.ID,
			Username:          user.Username,
			CurrentLevel:      user.CurrentLevel,
			IsOnline:          user.IsOnline,
			IsPartner:         partnerIDs[user.ID],
			HasPendingRequest: pendingTargets[user.ID],
		})
	}

	return results, nil
}

// SendRequest 파트너 요청 보내기
func (s *PartnerService) SendRequest(fromUserID, toUserID string) (*models.PartnerRequest, error) {
	if fromUserID == toUserID {
		return nil, ErrSelfRequest
	}

	target, err := s.userRepo.FindByID(toUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find target user: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	partners, err := s.partnershipRepo.PartnershipExists(fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check partnership: %w", err)
	}
	if partners {
		return nil, ErrAlreadyPartners
	}

	pending, err := s.partnershipRepo.PendingRequestExists(fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending request: %w", err)
	}
	if pending {
		return nil, ErrRequestPending
	}

	request, err := s.partnershipRepo.CreateRequest(fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Info("Partner request sent",
		zap.String("from", fromUserID),
		zap.String("to", toUserID))

	return request, nil
}

// Respond 요청 수락/거절. 수락 시 파트너 관계 생성
func (s *PartnerService) Respond(requestID, userID string, accept bool) error {
	request, err := s.partnershipRepo.FindRequestByID(requestID)
	if err != nil {
		return fmt.Errorf("failed to find request: %w", err)
	}
	if request == nil {
		return ErrPartnerRequestNotFound
	}
	if request.ToUserID != userID {
		return ErrNotRequestRecipient
	}

	status := models.RequestStatusRejected
	if accept {
		status = models.RequestStatusAccepted
	}

	updated, err := s.partnershipRepo.UpdateRequestStatus(requestID, status)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if !updated {
		// 이미 처리된 요청
		return ErrPartnerRequestNotFound
	}

	if accept {
		if _, err := s.partnershipRepo.CreatePartnership(request.FromUserID, request.ToUserID); err != nil {
			return fmt.Errorf("failed to create partnership: %w", err)
		}
		s.logger.Info("Partnership created",
			zap.String("user1", request.FromUserID),
			zap.String("user2", request.ToUserID))
	}

	return nil
}

// RemovePartner 파트너 관계 해제. 관계가 없으면 ErrPartnershipNotFound
func (s *PartnerService) RemovePartner(userID, partnerID string) error {
	removed, err := s.partnershipRepo.Delete(userID, partnerID)
	if err != nil {
		return fmt.Errorf("failed to remove partner: %w", err)
	}
	if !removed {
		return ErrPartnershipNotFound
	}

	s.logger.Info("Partnership removed",
		zap.String("user", userID),
		zap.String("partner", partnerID))

	return nil
}

// ListPartners 파트너 목록
func (s *PartnerService) ListPartners(userID string) ([]models.User, error) {
	partners, err := s.partnershipRepo.ListPartners(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	return partners, nil
}

// ListIncomingRequests 수신한 대기 중 요청 목록
func (s *PartnerService) ListIncomingRequests(userID string) ([]models.PartnerRequest, error) {
	requests, err := s.partnershipRepo.ListIncomingRequests(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}
