package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const linkCodeColumns = `id, profile_id, code, expires_at, used_at, used_chat_id, created_at`

type LinkCodeRepository struct {
	*base.Repository
}

func NewLinkCodeRepository(pool *pgxpool.Pool) *LinkCodeRepository {
	return &LinkCodeRepository{Repository: base.NewRepository(pool)}
}

// Create сохраняет новый код
func (r *LinkCodeRepository) Create(ctx context.Context, code *model.LinkCode) error {
	query := `
		INSERT INTO link_codes (profile_id, code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.Pool().QueryRow(ctx, query, code.ProfileID, code.Code, code.ExpiresAt).Scan(&code.ID, &code.CreatedAt)
	if err != nil {
		return fmt.Errorf("create link code: %w", err)
	}

	return nil
}

// CodeExists проверяет, занята ли строка кода
func (r *LinkCodeRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.Pool().QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM link_codes WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check link code exists: %w", err)
	}
	return exists, nil
}

// Consume гасит действующий код и привязывает чат к его профилю в одной транзакции.
// Чат отвязывается от прежнего профиля. Неизвестный, истёкший или использованный код — nil, nil.
func (r *LinkCodeRepository) Consume(ctx context.Context, code string, chatID int64, now time.Time) (*model.LinkCode, error) {
	var consumed *model.LinkCode

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE link_codes
			SET used_at = $3, used_chat_id = $2
			WHERE code = $1 AND used_at IS NULL AND expires_at > $3
			RETURNING ` + linkCodeColumns

		var c model.LinkCode
		err := tx.QueryRow(ctx, query, code, chatID, now).Scan(
			&c.ID,
			&c.ProfileID,
			&c.Code,
			&c.ExpiresAt,
			&c.UsedAt,
			&c.UsedChatID,
			&c.CreatedAt,
		)
		if err != nil {
			if base.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("consume link code: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE profiles SET telegram_chat_id = NULL WHERE telegram_chat_id = $1 AND id <> $2`,
			chatID, c.ProfileID); err != nil {
			return fmt.Errorf("unlink previous profile: %w", err)
		}

		affected, err := base.ExecAffected(ctx, tx,
			`UPDATE profiles SET telegram_chat_id = $1 WHERE id = $2`, chatID, c.ProfileID)
		if err != nil {
			return fmt.Errorf("link telegram: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("link telegram: profile %s not found", c.ProfileID)
		}

		consumed = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return consumed, nil
}
