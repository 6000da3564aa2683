package repository

import (
	"database/sql"
	"fmt"

	"github.com/valiyev-777/Speaking/internal/models"
	"github.com/valiyev-777/Speaking/pkg/database"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, username, current_level, target_score, is_online, last_seen, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	user := &models.User{}
	var (
		currentLevel sql.NullFloat64
		targetScore  sql.NullFloat64
		lastSeen     sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Username,
		&currentLevel,
		&targetScore,
		&user.IsOnline,
		&lastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// 레벨 미지정 사용자는 기본 레벨로 취급
	if currentLevel.Valid {
		user.CurrentLevel = currentLevel.Float64
	} else {
		user.CurrentLevel = models.DefaultLevel
	}
	user.TargetScore = targetScore.Float64
	user.LastSeen = lastSeen.Time
	return user, nil
}

// Create 새 사용자 생성
func (r *UserRepository) Create(email, passwordHash, username string) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, username)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(query, email, passwordHash, username))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// FindByEmail 이메일로 사용자 찾기 (없으면 nil)
func (r *UserRepository) FindByEmail(email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// FindByID ID로 사용자 찾기 (없으면 nil)
func (r *UserRepository) FindByID(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// Update 프로필 업데이트 (nil 필드는 유지)
func (r *UserRepository) Update(id string, req *models.UpdateUserRequest) (*models.User, error) {
	query := `
		UPDATE users
		SET username = COALESCE($2, username),
		    current_level = COALESCE($3, current_level),
		    target_score = COALESCE($4, target_score),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(query, id, req.Username, req.CurrentLevel, req.TargetScore))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// SetOnline 접속 상태 갱신 (last_seen도 함께 갱신)
func (r *UserRepository) SetOnline(id string, online bool) error {
	query := `
		UPDATE users
		SET is_online = $2, last_seen = NOW()
		WHERE id = $1
	`

	_, err := r.db.Exec(query, id, online)
	if err != nil {
		return fmt.Errorf("failed to set online status: %w", err)
	}

	return nil
}

// List 사용자 목록 조회 (onlineOnly 필터 지원)
func (r *UserRepository) List(onlineOnly bool, limit, offset int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if onlineOnly {
		query += ` WHERE is_online`
	}
	query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// CountOnline 현재 온라인 사용자 수
func (r *UserRepository) CountOnline() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE is_online`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}

	return count, nil
}

// SearchByUsername 사용자명 부분 일치 검색 (본인 제외)
func (r *UserRepository) SearchByUsername(q, excludeUserID string, limit int) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username ILIKE '%' || $1 || '%' AND id != $2
		ORDER BY username ASC
		LIMIT $3
	`

	rows, err := r.db.Query(query, q, excludeUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}
