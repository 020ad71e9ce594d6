package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/timeslot"
	"go.uber.org/zap"
)

// AvailabilityService отвечает на вопрос «что со слотом X у преподавателя Y в неделе W»
type AvailabilityService struct {
	availability AvailabilityStore
	reservations ReservationStore
	cfg          BookingConfig
	logger       *zap.Logger
}

func NewAvailabilityService(
	availability AvailabilityStore,
	reservations ReservationStore,
	cfg BookingConfig,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		availability: availability,
		reservations: reservations,
		cfg:          cfg.withDefaults(),
		logger:       logger,
	}
}

// DeriveSlotStatuses строит карту "{Monday}-{hour}" -> статус для окна не длиннее недели.
// RESERVED важнее всего остального; прошедшие слоты без брони — NONE.
func (s *AvailabilityService) DeriveSlotStatuses(ctx context.Context, tutorID string, weekStart, weekEnd timeslot.CalendarDate) (map[string]model.SlotStatus, error) {
	if tutorID == "" {
		return nil, fmt.Errorf("%w: tutor id is required", ErrInvalidRequest)
	}
	if weekEnd.Before(weekStart) || weekStart.AddDays(6).Before(weekEnd) {
		return nil, fmt.Errorf("%w: window %s..%s must span 1 to 7 days", ErrInvalidRequest, weekStart, weekEnd)
	}

	weekly, err := s.availability.GetWeekly(ctx, tutorID)
	if err != nil {
		return nil, persistence("get weekly availability", err)
	}

	now := s.cfg.now()
	statuses := make(map[string]model.SlotStatus)
	for day := weekStart; !day.After(weekEnd); day = day.AddDays(1) {
		weekday := day.Weekday()
		for hour := s.cfg.FirstHour; hour <= s.cfg.LastHour; hour++ {
			status := model.SlotStatusNone
			if weekly.Covers(weekday, hour) && !day.At(hour, 0).Before(now) {
				status = model.SlotStatusAvailable
			}
			statuses[timeslot.SlotKey(weekday, hour)] = status
		}
	}

	// занятие, начатое накануне вечером, может заходить в первый день окна
	reserved, err := s.reservations.ListByTutor(ctx, tutorID, weekStart.AddDays(-1).Time(), weekEnd.AddDays(1).Time(), model.HoldingStatuses)
	if err != nil {
		return nil, persistence("list tutor reservations", err)
	}
	for _, r := range reserved {
		// отмечаем каждый час, который задевает занятие
		for t := r.BeginsAt.In(timeslot.Reference).Truncate(time.Hour); t.Before(r.EndsAt); t = t.Add(time.Hour) {
			day := timeslot.DateOf(t)
			if day.Before(weekStart) || day.After(weekEnd) || t.Hour() < s.cfg.FirstHour || t.Hour() > s.cfg.LastHour {
				continue
			}
			statuses[timeslot.SlotKeyOf(t)] = model.SlotStatusReserved
		}
	}

	return statuses, nil
}

// GetWeeklyAvailability возвращает объявленную сетку преподавателя
func (s *AvailabilityService) GetWeeklyAvailability(ctx context.Context, tutorID string) (*model.WeeklyAvailability, error) {
	weekly, err := s.availability.GetWeekly(ctx, tutorID)
	if err != nil {
		return nil, persistence("get weekly availability", err)
	}
	return weekly, nil
}

// SetWeeklyAvailability заменяет сетку; окна одного дня не должны пересекаться
func (s *AvailabilityService) SetWeeklyAvailability(ctx context.Context, tutorID string, days map[time.Weekday][]model.TimeRange) (*model.WeeklyAvailability, error) {
	if tutorID == "" {
		return nil, fmt.Errorf("%w: tutor id is required", ErrInvalidRequest)
	}

	weekly := model.NewWeeklyAvailability(tutorID)
	for day, ranges := range days {
		if day < time.Sunday || day > time.Saturday {
			return nil, fmt.Errorf("%w: unknown weekday %d", ErrInvalidRequest, day)
		}
		if len(ranges) == 0 {
			continue
		}

		sorted := append([]model.TimeRange(nil), ranges...)
		model.SortRanges(sorted)
		for i, rng := range sorted {
			if rng.StartHour < 0 || rng.StartHour > 23 || rng.End() <= rng.StartHour || rng.End() > 24 {
				return nil, fmt.Errorf("%w: bad range %d..%d on %s", ErrInvalidRequest, rng.StartHour, rng.End(), day)
			}
			if i > 0 && rng.StartHour < sorted[i-1].End() {
				return nil, fmt.Errorf("%w: %s %d..%d and %d..%d", ErrOverlappingAvailability,
					day, sorted[i-1].StartHour, sorted[i-1].End(), rng.StartHour, rng.End())
			}
		}
		weekly.Days[day] = sorted
	}

	if err := s.availability.ReplaceWeekly(ctx, weekly); err != nil {
		return nil, persistence("replace weekly availability", err)
	}

	s.logger.Info("Weekly availability updated",
		zap.String("tutor_id", tutorID),
		zap.Int("days", len(weekly.Days)))

	return weekly, nil
}

// ToggleSlot переключает часовое окно в сетке. Для RESERVED ничего не делает
// и возвращает текущий статус.
func (s *AvailabilityService) ToggleSlot(ctx context.Context, tutorID string, weekday time.Weekday, hour int, week timeslot.CalendarDate) (model.SlotStatus, error) {
	if hour < s.cfg.FirstHour || hour > s.cfg.LastHour {
		return "", fmt.Errorf("%w: hour %d is outside %d..%d", ErrInvalidRequest, hour, s.cfg.FirstHour, s.cfg.LastHour)
	}

	monday := timeslot.MondayOf(week)
	statuses, err := s.DeriveSlotStatuses(ctx, tutorID, monday, monday.AddDays(6))
	if err != nil {
		return "", err
	}

	key := timeslot.SlotKey(weekday, hour)
	if statuses[key] == model.SlotStatusReserved {
		s.logger.Info("Toggle ignored for reserved slot",
			zap.String("tutor_id", tutorID),
			zap.String("slot", key))
		return model.SlotStatusReserved, nil
	}

	weekly, err := s.availability.GetWeekly(ctx, tutorID)
	if err != nil {
		return "", persistence("get weekly availability", err)
	}
	if weekly == nil {
		weekly = model.NewWeeklyAvailability(tutorID)
	}

	hours := model.HourSet(weekly.Days[weekday])
	hours[hour] = !hours[hour]
	if ranges := model.RangesFromHours(hours); len(ranges) > 0 {
		weekly.Days[weekday] = ranges
	} else {
		delete(weekly.Days, weekday)
	}

	if err := s.availability.ReplaceWeekly(ctx, weekly); err != nil {
		return "", persistence("replace weekly availability", err)
	}

	if hours[hour] {
		return model.SlotStatusAvailable, nil
	}
	return model.SlotStatusNone, nil
}
