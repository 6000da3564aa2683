package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/pkg/database"
)

// ErrEntryClaimed 대기열 엔트리가 이미 다른 경로(매칭/탈퇴/연결 종료)로 소비됨
var ErrEntryClaimed = errors.New("queue entry already claimed")

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// newRoomID 세션별 고유 룸 토큰 생성
func newRoomID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "room_" + hex[:12]
}

// CreateMatch 한 쌍의 매칭을 원자적으로 커밋: 두 엔트리 조건부 비활성화 + 세션 생성.
// 둘 중 하나라도 이미 소비된 엔트리면 전체 롤백하고 ErrEntryClaimed
func (r *SessionRepository) CreateMatch(entry1, entry2 *models.QueueEntry) (*models.Session, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deactivate := `
		UPDATE queue_entries
		SET is_active = false
		WHERE id = $1 AND is_active
	`

	for _, entryID := range []string{entry1.ID, entry2.ID} {
		result, err := tx.Exec(deactivate, entryID)
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate entry: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return nil, ErrEntryClaimed
		}
	}

	insert := `
		INSERT INTO sessions (user1_id, user2_id, mode, room_id, status)
		VALUES ($1, $2, $3, $4, 'active')
		RETURNING id, user1_id, user2_id, mode, room_id, status, started_at, ended_at
	`

	session := &models.Session{}
	err = tx.QueryRow(insert, entry1.UserID, entry2.UserID, entry1.Mode, newRoomID()).Scan(
		&session.ID,
		&session.User1ID,
		&session.User2ID,
		&session.Mode,
		&session.RoomID,
		&session.Status,
		&session.StartedAt,
		&session.EndedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match: %w", err)
	}

	return session, nil
}

// CreateDirect 대기열을 거치지 않는 세션 생성 (파트너 초대 수락 시)
func (r *SessionRepository) CreateDirect(user1ID, user2ID string, mode models.QueueMode) (*models.Session, error) {
	query := `
		INSERT INTO sessions (user1_id, user2_id, mode, room_id, status)
		VALUES ($1, $2, $3, $4, 'active')
		RETURNING id, user1_id, user2_id, mode, room_id, status, started_at, ended_at
	`

	session := &models.Session{}
	err := r.db.QueryRow(query, user1ID, user2ID, mode, newRoomID()).Scan(
		&session.ID,
		&session.User1ID,
		&session.User2ID,
		&session.Mode,
		&session.RoomID,
		&session.Status,
		&session.StartedAt,
		&session.EndedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// FindByID ID로 세션 조회 (없으면 nil)
func (r *SessionRepository) FindByID(id string) (*models.Session, error) {
	query := `
		SELECT id, user1_id, user2_id, mode, room_id, status, started_at, ended_at
		FROM sessions
		WHERE id = $1
	`

	session := &models.Session{}
	err := r.db.QueryRow(query, id).Scan(
		&session.ID,
		&session.User1ID,
		&session.User2ID,
		&session.Mode,
		&session.RoomID,
		&session.Status,
		&session.StartedAt,
		&session.EndedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// Complete 활성 세션을 completed로 전이. 이미 종료된 세션이면 false
// (상태 전이는 active→completed/cancelled 단방향)
func (r *SessionRepository) Complete(id string, endedAt time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET status = 'completed', ended_at = $2
		WHERE id = $1 AND status = 'active'
	`

	result, err := r.db.Exec(query, id, endedAt)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListByUser 사용자의 세션 이력 (최근 순)
func (r *SessionRepository) ListByUser(userID string, limit, offset int) ([]models.Session, error) {
	query := `
		SELECT id, user1_id, user2_id, mode, room_id, status, started_at, ended_at
		FROM sessions
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.User1ID,
			&session.User2ID,
			&session.Mode,
			&session.RoomID,
			&session.Status,
			&session.StartedAt,
			&session.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}
