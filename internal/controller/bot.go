package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/notify"
	"github.com/Freeeeeet/classroom_scheduler/internal/service"
	"github.com/Freeeeeet/classroom_scheduler/internal/timeslot"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// лимит подписи к фото в Telegram
const maxCaptionLength = 1024

var (
	ErrProfileNotLinked = errors.New("telegram chat is not linked to a profile")
	ErrNotParticipant   = errors.New("profile is not a participant of the reservation")
	ErrNotATutor        = errors.New("profile is not a tutor")
)

// ReservationActions — операции над занятиями, доступные из бота
type ReservationActions interface {
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	CancelReservation(ctx context.Context, id int64) (*model.Reservation, error)
	ConfirmReservation(ctx context.Context, id int64, review model.Review) (*model.Reservation, error)
	ListTutorReservations(ctx context.Context, tutorID string, from, to timeslot.CalendarDate) ([]*model.Reservation, error)
}

// ProfileDirectory находит профиль по чату Telegram
type ProfileDirectory interface {
	GetByTelegramChatID(ctx context.Context, chatID int64) (*model.Profile, error)
}

// SlotGrid — статусы часовых слотов преподавателя за неделю
type SlotGrid interface {
	DeriveSlotStatuses(ctx context.Context, tutorID string, weekStart, weekEnd timeslot.CalendarDate) (map[string]model.SlotStatus, error)
}

// LinkCodeRedeemer гасит одноразовый код привязки из личного кабинета
type LinkCodeRedeemer interface {
	RedeemCode(ctx context.Context, code string, chatID int64) (*model.Profile, error)
}

type BotController struct {
	bot          *bot.Bot
	reservations ReservationActions
	profiles     ProfileDirectory
	links        LinkCodeRedeemer
	grid         SlotGrid
	now          func() time.Time
	logger       *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	reservations ReservationActions,
	profiles ProfileDirectory,
	links LinkCodeRedeemer,
	grid SlotGrid,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:          botInstance,
		reservations: reservations,
		profiles:     profiles,
		links:        links,
		grid:         grid,
		now:          time.Now,
		logger:       logger,
	}
}

// RegisterHandlers регистрирует команды и обработчик кнопок под уведомлениями
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, c.handleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/week", bot.MatchTypeExact, c.handleWeek)

	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "rsv:", bot.MatchTypePrefix, c.handleCallbackQuery)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Привязать профиль"},
		{Command: "help", Description: "❓ Справка по командам"},
		{Command: "week", Description: "🗓 Мои занятия на неделе (преподаватель)"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает long polling до отмены контекста
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}

func (c *BotController) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.sendMessage(ctx, b, update.Message.Chat.ID, c.LinkProfile(ctx, update.Message.Chat.ID, update.Message.Text))
}

func (c *BotController) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/start <код> - Привязать профиль по коду из личного кабинета\n" +
		"/week - Занятия на текущей неделе (для преподавателей)\n" +
		"/help - Показать эту справку\n\n" +
		"Кнопки под уведомлениями позволяют оценить занятие или отменить его."
	c.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

func (c *BotController) handleWeek(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	text := c.WeekOverview(ctx, chatID)

	imageData, err := c.WeekImage(ctx, chatID)
	if err != nil {
		if !errors.Is(err, ErrNotATutor) && !errors.Is(err, ErrProfileNotLinked) {
			c.logger.Warn("Week image unavailable, sending text", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		c.sendMessage(ctx, b, chatID, text)
		return
	}

	params := &bot.SendPhotoParams{
		ChatID: chatID,
		Photo:  &models.InputFileUpload{Filename: "week.png", Data: bytes.NewReader(imageData)},
	}
	captioned := len([]rune(text)) <= maxCaptionLength
	if captioned {
		params.Caption = text
	}
	if _, err := b.SendPhoto(ctx, params); err != nil {
		c.logger.Error("Failed to send week image", zap.Int64("chat_id", chatID), zap.Error(err))
		captioned = false
	}
	if !captioned {
		c.sendMessage(ctx, b, chatID, text)
	}
}

func (c *BotController) handleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	answer := c.HandleReservationCallback(ctx, callback.From.ID, callback.Data)

	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            answer,
		ShowAlert:       strings.HasPrefix(answer, "❌"),
	})
	if err != nil {
		c.logger.Error("Failed to answer callback",
			zap.String("data", callback.Data),
			zap.Error(err))
	}
}

// LinkProfile обрабатывает "/start <код>" и возвращает текст ответа
func (c *BotController) LinkProfile(ctx context.Context, chatID int64, text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		profile, err := c.profiles.GetByTelegramChatID(ctx, chatID)
		if err == nil && profile != nil {
			return fmt.Sprintf("👋 С возвращением, %s!", profile.DisplayName)
		}
		return "👋 Привет! Чтобы получать уведомления о занятиях, откройте ссылку из личного кабинета или отправьте /start <код>."
	}

	profile, err := c.links.RedeemCode(ctx, fields[1], chatID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidLinkCode) {
			c.logger.Warn("Invalid link code", zap.Int64("chat_id", chatID))
			return ErrorMessage(err)
		}
		c.logger.Error("Failed to redeem link code", zap.Int64("chat_id", chatID), zap.Error(err))
		return "❌ Не удалось привязать профиль. Попробуйте позже."
	}

	return fmt.Sprintf("✅ %s, уведомления о занятиях будут приходить сюда", profile.DisplayName)
}

// WeekOverview — занятия преподавателя на текущей неделе
func (c *BotController) WeekOverview(ctx context.Context, chatID int64) string {
	profile, err := c.requireProfile(ctx, chatID)
	if err != nil {
		return ErrorMessage(err)
	}
	if !profile.IsTutor {
		return ErrorMessage(ErrNotATutor)
	}

	monday := timeslot.MondayOf(timeslot.DateOf(c.now()))
	reservations, err := c.reservations.ListTutorReservations(ctx, profile.ID, monday, monday.AddDays(6))
	if err != nil {
		c.logger.Error("Failed to list week", zap.String("profile_id", profile.ID), zap.Error(err))
		return ErrorMessage(err)
	}
	return FormatWeek(reservations)
}

// WeekImage рисует сетку слотов преподавателя на текущую неделю
func (c *BotController) WeekImage(ctx context.Context, chatID int64) ([]byte, error) {
	profile, err := c.requireProfile(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !profile.IsTutor {
		return nil, ErrNotATutor
	}

	today := timeslot.DateOf(c.now())
	monday := timeslot.MondayOf(today)
	statuses, err := c.grid.DeriveSlotStatuses(ctx, profile.ID, monday, monday.AddDays(6))
	if err != nil {
		return nil, fmt.Errorf("derive slot statuses: %w", err)
	}
	return GenerateWeekImage(monday, today, statuses)
}

// HandleReservationCallback выполняет действие кнопки и возвращает текст ответа
func (c *BotController) HandleReservationCallback(ctx context.Context, chatID int64, data string) string {
	cb, err := notify.ParseCallback(data)
	if err != nil {
		c.logger.Warn("Invalid callback data", zap.String("data", data), zap.Error(err))
		return "❌ Неверный формат данных"
	}

	profile, err := c.requireProfile(ctx, chatID)
	if err != nil {
		return ErrorMessage(err)
	}

	reservation, err := c.reservations.GetReservation(ctx, cb.ReservationID)
	if err != nil {
		return c.fail(cb, profile, err)
	}
	if !reservation.HasParticipant(profile.ID) {
		return c.fail(cb, profile, ErrNotParticipant)
	}

	switch cb.Action {
	case notify.CallbackRate:
		_, err = c.reservations.ConfirmReservation(ctx, cb.ReservationID, model.Review{
			ReservationID: cb.ReservationID,
			AuthorID:      profile.ID,
			Rating:        cb.Stars,
		})
		if err != nil {
			return c.fail(cb, profile, err)
		}
		c.logger.Info("Reservation rated from telegram",
			zap.Int64("reservation_id", cb.ReservationID),
			zap.String("profile_id", profile.ID),
			zap.Int("stars", cb.Stars))
		return fmt.Sprintf("%s Спасибо за оценку!", strings.Repeat("⭐", cb.Stars))

	case notify.CallbackCancel:
		if _, err = c.reservations.CancelReservation(ctx, cb.ReservationID); err != nil {
			return c.fail(cb, profile, err)
		}
		c.logger.Info("Reservation cancelled from telegram",
			zap.Int64("reservation_id", cb.ReservationID),
			zap.String("profile_id", profile.ID))
		return "✅ Занятие отменено"
	}

	return "❌ Неверный формат данных"
}

func (c *BotController) requireProfile(ctx context.Context, chatID int64) (*model.Profile, error) {
	profile, err := c.profiles.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		c.logger.Error("Failed to get profile", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil, fmt.Errorf("get profile by chat: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileNotLinked
	}
	return profile, nil
}

func (c *BotController) fail(cb notify.Callback, profile *model.Profile, err error) string {
	c.logger.Warn("Reservation callback failed",
		zap.String("action", string(cb.Action)),
		zap.Int64("reservation_id", cb.ReservationID),
		zap.String("profile_id", profile.ID),
		zap.Error(err))
	return ErrorMessage(err)
}

// sendMessage отправляет сообщение и логирует если не удалось
func (c *BotController) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrProfileNotLinked):
		return "❌ Чат не привязан к профилю. Используйте /start"
	case errors.Is(err, ErrNotParticipant):
		return "❌ Это не ваше занятие"
	case errors.Is(err, ErrNotATutor):
		return "❌ Эта команда доступна только преподавателям"
	case errors.Is(err, service.ErrReservationNotFound):
		return "❌ Занятие не найдено"
	case errors.Is(err, service.ErrAlreadyTerminal):
		return "❌ Занятие уже закрыто"
	case errors.Is(err, service.ErrInvalidTransition):
		return "❌ Сейчас это действие недоступно"
	case errors.Is(err, service.ErrInvalidLinkCode):
		return "❌ Код недействителен или истёк. Получите новый в личном кабинете"
	case errors.Is(err, service.ErrInvalidRequest):
		return "❌ Неверные данные"
	default:
		return "❌ Произошла ошибка"
	}
}
