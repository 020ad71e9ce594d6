package model

import "time"

// Profile — профиль пользователя маркетплейса (владелец — внешний auth-провайдер)
type Profile struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	TelegramChatID *int64    `json:"telegram_chat_id"` // nil, если Telegram не привязан
	IsTutor        bool      `json:"is_tutor"`
	IsStaff        bool      `json:"is_staff"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasTelegram проверяет, можно ли доставить уведомление в Telegram
func (p *Profile) HasTelegram() bool {
	return p != nil && p.TelegramChatID != nil && *p.TelegramChatID != 0
}
