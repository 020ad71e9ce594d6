// Package notify доставляет уведомления о занятиях участникам и оператору.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// MessageSender — часть *bot.Bot, нужная для отправки
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// ProfileLookup находит профиль получателя
type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
}

// TelegramSender отправляет уведомления в чат, привязанный к профилю
type TelegramSender struct {
	sender   MessageSender
	profiles ProfileLookup
	logger   *zap.Logger
}

func NewTelegramSender(sender MessageSender, profiles ProfileLookup, logger *zap.Logger) *TelegramSender {
	return &TelegramSender{
		sender:   sender,
		profiles: profiles,
		logger:   logger,
	}
}

// Notify отправляет сообщение; профиль без Telegram молча пропускается
func (s *TelegramSender) Notify(ctx context.Context, n model.Notification) error {
	profile, err := s.profiles.GetByID(ctx, n.ProfileID)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if !profile.HasTelegram() {
		s.logger.Debug("Profile has no telegram chat, skipping",
			zap.String("profile_id", n.ProfileID))
		return nil
	}

	params := &bot.SendMessageParams{
		ChatID: *profile.TelegramChatID,
		Text:   n.Message,
	}
	if keyboard := buildKeyboard(n); keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := s.sender.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func buildKeyboard(n model.Notification) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	switch n.Action {
	case model.NotificationActionRate:
		if n.ReservationID > 0 {
			stars := make([]models.InlineKeyboardButton, 0, 5)
			for i := 1; i <= 5; i++ {
				stars = append(stars, models.InlineKeyboardButton{
					Text:         fmt.Sprintf("%d⭐", i),
					CallbackData: RateCallback(n.ReservationID, i),
				})
			}
			rows = append(rows, stars)
		}
	case model.NotificationActionManage:
		if n.ReservationID > 0 {
			rows = append(rows, []models.InlineKeyboardButton{
				{Text: "❌ Отменить занятие", CallbackData: CancelCallback(n.ReservationID)},
			})
		}
	}

	// Telegram принимает только абсолютные http(s) ссылки
	if strings.HasPrefix(n.URL, "https://") || strings.HasPrefix(n.URL, "http://") {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "🔗 Открыть", URL: n.URL},
		})
	}

	if len(rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
