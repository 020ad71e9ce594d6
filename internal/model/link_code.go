package model

import "time"

// LinkCode — одноразовый код привязки чата Telegram к профилю
type LinkCode struct {
	ID         int64      `json:"id"`
	ProfileID  string     `json:"profile_id"`
	Code       string     `json:"code"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	UsedChatID *int64     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsValid проверяет, что код не использован и не истёк
func (c *LinkCode) IsValid(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt)
}
