package api

import (
	"context"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/timeslot"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AvailabilityService interface {
	DeriveSlotStatuses(ctx context.Context, tutorID string, weekStart, weekEnd timeslot.CalendarDate) (map[string]model.SlotStatus, error)
	GetWeeklyAvailability(ctx context.Context, tutorID string) (*model.WeeklyAvailability, error)
	SetWeeklyAvailability(ctx context.Context, tutorID string, days map[time.Weekday][]model.TimeRange) (*model.WeeklyAvailability, error)
	ToggleSlot(ctx context.Context, tutorID string, weekday time.Weekday, hour int, week timeslot.CalendarDate) (model.SlotStatus, error)
}

type AvailabilityHandler struct {
	availability AvailabilityService
	validate     *validator.Validate
	now          func() time.Time
	logger       *zap.Logger
}

func NewAvailabilityHandler(availability AvailabilityService, now func() time.Time, logger *zap.Logger) *AvailabilityHandler {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityHandler{
		availability: availability,
		validate:     validator.New(),
		now:          now,
		logger:       logger,
	}
}

// WeeklyAvailabilityRequest — сетка по именам дней: {"Monday": [{"start_hour":10,"end_hour":14}]}
type WeeklyAvailabilityRequest struct {
	Days map[string][]model.TimeRange `json:"days" validate:"required"`
}

type ToggleSlotRequest struct {
	Day  string `json:"day" validate:"required"`
	Hour int    `json:"hour" validate:"min=0,max=23"`
	Week string `json:"week"`
}

// weeklyResponse — сетка с именами дней вместо номеров
type weeklyResponse struct {
	TutorID string                       `json:"tutor_id"`
	Days    map[string][]model.TimeRange `json:"days"`
}

func toWeeklyResponse(w *model.WeeklyAvailability) weeklyResponse {
	resp := weeklyResponse{TutorID: w.TutorID, Days: make(map[string][]model.TimeRange, len(w.Days))}
	for day, ranges := range w.Days {
		resp.Days[timeslot.DayName(day)] = ranges
	}
	return resp
}

// weekParam читает ?week=YYYY-MM-DD; без параметра берётся текущая неделя
func (h *AvailabilityHandler) weekParam(raw string) (timeslot.CalendarDate, error) {
	if raw == "" {
		return timeslot.DateOf(h.now()), nil
	}
	return timeslot.ParseCalendarDate(raw)
}

// GetSlots отдаёт карту "{Monday}-{hour}" -> статус для недели, содержащей week
func (h *AvailabilityHandler) GetSlots(c *fiber.Ctx) error {
	week, err := h.weekParam(c.Query("week"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	monday := timeslot.MondayOf(week)
	sunday := monday.AddDays(6)

	slots, err := h.availability.DeriveSlotStatuses(c.UserContext(), c.Params("id"), monday, sunday)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"week_start": monday.String(),
		"week_end":   sunday.String(),
		"slots":      slots,
	})
}

func (h *AvailabilityHandler) GetAvailability(c *fiber.Ctx) error {
	weekly, err := h.availability.GetWeeklyAvailability(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(toWeeklyResponse(weekly))
}

func (h *AvailabilityHandler) PutAvailability(c *fiber.Ctx) error {
	var request WeeklyAvailabilityRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON", err)
	}
	if err := h.validate.Struct(&request); err != nil {
		return badRequest(c, "Invalid input", err)
	}

	days := make(map[time.Weekday][]model.TimeRange, len(request.Days))
	for name, ranges := range request.Days {
		day, err := timeslot.ParseWeekday(name)
		if err != nil {
			return badRequest(c, "Invalid weekday", err)
		}
		days[day] = append(days[day], ranges...)
	}

	weekly, err := h.availability.SetWeeklyAvailability(c.UserContext(), c.Params("id"), days)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(toWeeklyResponse(weekly))
}

// ToggleSlot переключает часовое окно; зарезервированный слот не меняется
func (h *AvailabilityHandler) ToggleSlot(c *fiber.Ctx) error {
	var request ToggleSlotRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON", err)
	}
	if err := h.validate.Struct(&request); err != nil {
		return badRequest(c, "Invalid input", err)
	}

	day, err := timeslot.ParseWeekday(request.Day)
	if err != nil {
		return badRequest(c, "Invalid weekday", err)
	}
	week, err := h.weekParam(request.Week)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	status, err := h.availability.ToggleSlot(c.UserContext(), c.Params("id"), day, request.Hour, week)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"slot":   timeslot.SlotKey(day, request.Hour),
		"status": status,
	})
}
