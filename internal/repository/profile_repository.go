package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = `id, display_name, telegram_chat_id, is_tutor, is_staff, created_at`

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Create создаёт профиль или обновляет имя и роли существующего
func (r *ProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	query := `
		INSERT INTO profiles (id, display_name, telegram_chat_id, is_tutor, is_staff)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name, is_tutor = EXCLUDED.is_tutor, is_staff = EXCLUDED.is_staff
		RETURNING created_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		profile.ID,
		profile.DisplayName,
		profile.TelegramChatID,
		profile.IsTutor,
		profile.IsStaff,
	).Scan(&profile.CreatedAt)

	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	return nil
}

// GetByID получает профиль по ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile by id: %w", err)
	}

	return profile, nil
}

// GetByTelegramChatID получает профиль по чату Telegram
func (r *ProfileRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE telegram_chat_id = $1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, chatID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Чат не привязан
		}
		return nil, fmt.Errorf("get profile by telegram chat: %w", err)
	}

	return profile, nil
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var profile model.Profile
	err := row.Scan(
		&profile.ID,
		&profile.DisplayName,
		&profile.TelegramChatID,
		&profile.IsTutor,
		&profile.IsStaff,
		&profile.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
