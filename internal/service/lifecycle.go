package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"go.uber.org/zap"
)

// Статусы, из которых возможна явная отмена
var cancellableStatuses = []model.ReservationStatus{
	model.ReservationStatusRequested,
	model.ReservationStatusCreated,
	model.ReservationStatusNext,
}

// Статусы, из которых возможно подтверждение с отзывом
var confirmableStatuses = []model.ReservationStatus{
	model.ReservationStatusNext,
	model.ReservationStatusNotConfirmed,
}

// LifecycleService ведёт занятие по машине состояний
type LifecycleService struct {
	reservations ReservationStore
	dispatch     *dispatcher
	cfg          BookingConfig
	logger       *zap.Logger
}

func NewLifecycleService(
	reservations ReservationStore,
	notifier Notifier,
	events EventPublisher,
	cfg BookingConfig,
	logger *zap.Logger,
) *LifecycleService {
	cfg = cfg.withDefaults()
	return &LifecycleService{
		reservations: reservations,
		dispatch:     &dispatcher{notifier: notifier, events: events, cfg: cfg, logger: logger},
		cfg:          cfg,
		logger:       logger,
	}
}

// RunExpirySweep переводит прошедшие NEXT в NOTCONFIRMED и приглашает оценить занятие.
// Повторный запуск ничего не меняет: уведомления уходят только по строкам,
// которые перевёл именно этот вызов. Ошибка одной строки не останавливает остальные.
func (s *LifecycleService) RunExpirySweep(ctx context.Context) (int, error) {
	now := s.cfg.now()

	candidates, err := s.reservations.ListExpired(ctx, now)
	if err != nil {
		return 0, persistence("list expired reservations", err)
	}

	transitioned := 0
	for _, candidate := range candidates {
		updated, err := s.reservations.ExpireNext(ctx, candidate.ID, now)
		if err != nil {
			s.logger.Error("Failed to expire reservation",
				zap.Int64("reservation_id", candidate.ID),
				zap.Error(err))
			continue
		}
		if updated == nil {
			// уже подтверждено или отменено параллельно
			continue
		}

		transitioned++
		s.dispatch.statusChanged(ctx, updated, model.ReservationStatusNext)
		s.dispatch.notify(ctx, s.dispatch.rateInvitations(updated)...)
	}

	if transitioned > 0 || len(candidates) > 0 {
		s.logger.Info("Expiry sweep finished",
			zap.Int("candidates", len(candidates)),
			zap.Int("transitioned", transitioned))
	}

	return transitioned, nil
}

// Cancel переводит удерживающее слот занятие в CANCELLED
func (s *LifecycleService) Cancel(ctx context.Context, id int64) (*model.Reservation, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(current, model.ReservationStatusCancelled); err != nil {
		return nil, err
	}

	updated, err := s.reservations.TransitionStatus(ctx, id, cancellableStatuses, model.ReservationStatusCancelled)
	if err != nil {
		return nil, persistence("cancel reservation", err)
	}
	if updated == nil {
		return nil, s.lostRace(ctx, id, model.ReservationStatusCancelled)
	}

	s.logger.Info("Reservation cancelled",
		zap.Int64("reservation_id", id),
		zap.String("from", current.Status.String()))

	s.dispatch.statusChanged(ctx, updated, current.Status)
	s.dispatch.notify(ctx, s.dispatch.bothParties(updated,
		fmt.Sprintf("❌ Занятие %s отменено", updated.BeginsAt.Format("02.01.2006 15:04")),
		model.NotificationActionNone)...)

	return updated, nil
}

// Confirm закрывает занятие отзывом: NEXT или NOTCONFIRMED -> CONFIRMED
func (s *LifecycleService) Confirm(ctx context.Context, id int64, review model.Review) (*model.Reservation, error) {
	if err := review.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.HasParticipant(review.AuthorID) {
		return nil, fmt.Errorf("%w: %s is not a participant of reservation %d", ErrInvalidRequest, review.AuthorID, id)
	}
	if err := checkTransition(current, model.ReservationStatusConfirmed); err != nil {
		return nil, err
	}

	updated, err := s.reservations.ConfirmWithReview(ctx, id, confirmableStatuses, &review)
	if err != nil {
		return nil, persistence("confirm reservation", err)
	}
	if updated == nil {
		return nil, s.lostRace(ctx, id, model.ReservationStatusConfirmed)
	}

	s.logger.Info("Reservation confirmed",
		zap.Int64("reservation_id", id),
		zap.String("author_id", review.AuthorID),
		zap.Int("rating", review.Rating))

	s.dispatch.statusChanged(ctx, updated, current.Status)

	return updated, nil
}

func (s *LifecycleService) load(ctx context.Context, id int64) (*model.Reservation, error) {
	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, persistence("get reservation", err)
	}
	if reservation == nil {
		return nil, fmt.Errorf("%w: %d", ErrReservationNotFound, id)
	}
	return reservation, nil
}

// lostRace объясняет, почему условное обновление не сработало
func (s *LifecycleService) lostRace(ctx context.Context, id int64, target model.ReservationStatus) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(current, target); err != nil {
		return err
	}
	return fmt.Errorf("%w: reservation %d changed concurrently", ErrInvalidTransition, id)
}

func checkTransition(r *model.Reservation, target model.ReservationStatus) error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("%w: reservation %d is %s", ErrAlreadyTerminal, r.ID, r.Status)
	}
	if !r.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, target)
	}
	return nil
}
