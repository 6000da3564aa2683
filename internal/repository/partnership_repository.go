package repository

import (
	"database/sql"
	"fmt"

	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/pkg/database"
)

type PartnershipRepository struct {
	db *database.DB
}

func NewPartnershipRepository(db *database.DB) *PartnershipRepository {
	return &PartnershipRepository{db: db}
}

// CreateRequest 파트너 요청 생성
func (r *PartnershipRepository) CreateRequest(fromUserID, toUserID string) (*models.PartnerRequest, error) {
	query := `
		INSERT INTO partner_requests (from_user_id, to_user_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING id, from_user_id, to_user_id, status, created_at, updated_at
	`

	request := &models.PartnerRequest{}
	err := r.db.QueryRow(query, fromUserID, toUserID).Scan(
		&request.ID,
		&request.FromUserID,
		&request.ToUserID,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create partner request: %w", err)
	}

	return request, nil
}

// FindRequestByID 요청 조회 (없으면 nil)
func (r *PartnershipRepository) FindRequestByID(id string) (*models.PartnerRequest, error) {
	query := `
		SELECT id, from_user_id, to_user_id, status, created_at, updated_at
		FROM partner_requests
		WHERE id = $1
	`

	request := &models.PartnerRequest{}
	err := r.db.QueryRow(query, id).Scan(
		&request.ID,
		&request.FromUserID,
		&request.ToUserID,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find partner request: %w", err)
	}

	return request, nil
}

// PendingRequestExists 두 사용자 사이에 대기 중인 요청이 있는지 (양방향)
func (r *PartnershipRepository) PendingRequestExists(userA, userB string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM partner_requests
			WHERE status = 'pending'
			  AND ((from_user_id = $1 AND to_user_id = $2)
			    OR (from_user_id = $2 AND to_user_id = $1))
		)
	`

	var exists bool
	if err := r.db.QueryRow(query, userA, userB).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending request: %w", err)
	}

	return exists, nil
}

// UpdateRequestStatus 요청 상태 전이 (pending인 경우에만)
func (r *PartnershipRepository) UpdateRequestStatus(id string, status models.PartnerRequestStatus) (bool, error) {
	query := `
		UPDATE partner_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.Exec(query, id, status)
	if err != nil {
		return false, fmt.Errorf("failed to update request status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListIncomingRequests 수신한 대기 중 요청 목록
func (r *PartnershipRepository) ListIncomingRequests(userID string) ([]models.PartnerRequest, error) {
	query := `
		SELECT id, from_user_id, to_user_id, status, created_at, updated_at
		FROM partner_requests
		WHERE to_user_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming requests: %w", err)
	}
	defer rows.Close()

	var requests []models.PartnerRequest
	for rows.Next() {
		var request models.PartnerRequest
		if err := rows.Scan(
			&request.ID,
			&request.FromUserID,
			&request.ToUserID,
			&request.Status,
			&request.CreatedAt,
			&request.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, rows.Err()
}

// CreatePartnership 파트너 관계 생성
func (r *PartnershipRepository) CreatePartnership(user1ID, user2ID string) (*models.Partnership, error) {
	query := `
		INSERT INTO partnerships (user1_id, user2_id)
		VALUES ($1, $2)
		RETURNING id, user1_id, user2_id, created_at
	`

	partnership := &models.Partnership{}
	err := r.db.QueryRow(query, user1ID, user2ID).Scan(
		&partnership.ID,
		&partnership.User1ID,
		&partnership.User2ID,
		&partnership.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create partnership: %w", err)
	}

	return partnership, nil
}

// Delete 파트너 관계 해제 (양방향). 관계가 없으면 false
func (r *PartnershipRepository) Delete(userA, userB string) (bool, error) {
	query := `
		DELETE FROM partnerships
		WHERE (user1_id = $1 AND user2_id = $2)
		   OR (user1_id = $2 AND user2_id = $1)
	`

	result, err := r.db.Exec(query, userA, userB)
	if err != nil {
		return false, fmt.Errorf("failed to delete partnership: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// PartnershipExists 이미 파트너인지 확인 (양방향)
func (r *PartnershipRepository) PartnershipExists(userA, userB string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM partnerships
			WHERE (user1_id = $1 AND user2_id = $2)
			   OR (user1_id = $2 AND user2_id = $1)
		)
	`

	var exists bool
	if err := r.db.QueryRow(query, userA, userB).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check partnership: %w", err)
	}

	return exists, nil
}

// ListPartners 사용자의 파트너 목록 (상대방 사용자 정보)
func (r *PartnershipRepository) ListPartners(userID string) ([]models.User, error) {
	query := `
		SELECT u.id, u.email, u.password_hash, u.username, u.current_level,
		       u.target_score, u.is_online, u.last_seen, u.created_at, u.updated_at
		FROM partnerships p
		JOIN users u ON u.id = CASE WHEN p.user1_id = $1 THEN p.user2_id ELSE p.user1_id END
		WHERE p.user1_id = $1 OR p.user2_id = $1
		ORDER BY u.username ASC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// PartnerIDs 사용자의 파트너 ID 집합 (검색 결과 주석용)
func (r *PartnershipRepository) PartnerIDs(userID string) (map[string]bool, error) {
	query := `
		SELECT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END
		FROM partnerships
		WHERE user1_id = $1 OR user2_id = $1
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list partner ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan partner id: %w", err)
		}
		ids[id] = true
	}

	return ids, rows.Err()
}

// PendingRequestTargets 사용자가 보낸 대기 중 요청의 대상 ID 집합
func (r *PartnershipRepository) PendingRequestTargets(userID string) (map[string]bool, error) {
	query := `
		SELECT to_user_id
		FROM partner_requests
		WHERE from_user_id = $1 AND status = 'pending'
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending targets: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan target id: %w", err)
		}
		ids[id] = true
	}

	return ids, rows.Err()
}
