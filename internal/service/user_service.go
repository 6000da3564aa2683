package service

import (
	"fmt"

	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/pkg/logger"
	"go.uber.org/zap"
)

type UserService struct {
	userRepo UserAccountStore
	logger   *zap.Logger
}

func NewUserService(userRepo UserAccountStore) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger.Named("user"),
	}
}

// Register 회원가입
func (s *UserService) Register(email, password, username string) (*models.User, error) {
	existing, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(email, hash, username)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("userId", user.ID), zap.String("email", user.Email))

	return user, nil
}

// Login 이메일/비밀번호 인증
func (s *UserService) Login(email, password string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetByID 사용자 조회
func (s *UserService) GetByID(id string) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// Update 프로필 업데이트
func (s *UserService) Update(id string, req *models.UpdateUserRequest) (*models.User, error) {
	user, err := s.userRepo.Update(id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// OnlineCount 현재 온라인 사용자 수
func (s *UserService) OnlineCount() (int, error) {
	count, err := s.userRepo.CountOnline()
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}

	return count, nil
}

// List 사용자 목록 (onlineOnly 필터 지원)
func (s *UserService) List(onlineOnly bool, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.userRepo.List(onlineOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}
