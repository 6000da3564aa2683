package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/pkg/database"
)

// ErrDuplicateActiveEntry 사용자가 이미 활성 대기열 엔트리를 가진 경우
var ErrDuplicateActiveEntry = errors.New("user already has an active queue entry")

type QueueRepository struct {
	db *database.DB
}

func NewQueueRepository(db *database.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue 대기열에 엔트리 추가. 활성 엔트리가 이미 있으면 ErrDuplicateActiveEntry
// (부분 유니크 인덱스가 동시 요청까지 막아줌)
func (r *QueueRepository) Enqueue(userID string, mode models.QueueMode, levelFilter *float64) (*models.QueueEntry, error) {
	query := `
		INSERT INTO queue_entries (user_id, mode, level_filter)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, mode, level_filter, joined_at, is_active
	`

	entry := &models.QueueEntry{}
	err := r.db.QueryRow(query, userID, mode, levelFilter).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Mode,
		&entry.LevelFilter,
		&entry.JoinedAt,
		&entry.IsActive,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return nil, ErrDuplicateActiveEntry
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}

	return entry, nil
}

// ListActive 모드별 활성 엔트리 조회 (joined_at 오름차순, 동률은 삽입 순서)
func (r *QueueRepository) ListActive(mode models.QueueMode) ([]models.QueueEntry, error) {
	query := `
		SELECT id, user_id, mode, level_filter, joined_at, is_active
		FROM queue_entries
		WHERE mode = $1 AND is_active
		ORDER BY joined_at ASC, id ASC
	`

	rows, err := r.db.Query(query, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to list active entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var entry models.QueueEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Mode,
			&entry.LevelFilter,
			&entry.JoinedAt,
			&entry.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// DeactivateEntry 조건부 비활성화. 이미 소비된 엔트리면 false
// (매칭/탈퇴/연결 종료가 같은 엔트리를 두 번 소비하지 않도록 하는 가드)
func (r *QueueRepository) DeactivateEntry(entryID string) (bool, error) {
	query := `
		UPDATE queue_entries
		SET is_active = false
		WHERE id = $1 AND is_active
	`

	result, err := r.db.Exec(query, entryID)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// DeactivateForUser 사용자의 모든 활성 엔트리 비활성화 (없으면 no-op)
func (r *QueueRepository) DeactivateForUser(userID string) error {
	query := `
		UPDATE queue_entries
		SET is_active = false
		WHERE user_id = $1 AND is_active
	`

	_, err := r.db.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate entries for user: %w", err)
	}

	return nil
}

// ActiveEntryForUser 사용자의 활성 엔트리 조회 (없으면 nil)
func (r *QueueRepository) ActiveEntryForUser(userID string) (*models.QueueEntry, error) {
	query := `
		SELECT id, user_id, mode, level_filter, joined_at, is_active
		FROM queue_entries
		WHERE user_id = $1 AND is_active
	`

	entry := &models.QueueEntry{}
	err := r.db.QueryRow(query, userID).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Mode,
		&entry.LevelFilter,
		&entry.JoinedAt,
		&entry.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active entry: %w", err)
	}

	return entry, nil
}

// QueuePosition 대기열 내 FIFO 순번 (1부터 시작)
func (r *QueueRepository) QueuePosition(entry *models.QueueEntry) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM queue_entries
		WHERE mode = $1 AND is_active AND joined_at <= $2
	`

	var position int
	if err := r.db.QueryRow(query, entry.Mode, entry.JoinedAt).Scan(&position); err != nil {
		return 0, fmt.Errorf("failed to get queue position: %w", err)
	}

	return position, nil
}
