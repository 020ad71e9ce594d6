package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/repository"
)

// ReservationStore — хранилище занятий; реализуется repository.ReservationRepository
type ReservationStore interface {
	repository.ConflictQuerier
	WithTutorLock(ctx context.Context, tutorID string, fn func(ctx context.Context, tx repository.ReservationTx) error) error
	GetByID(ctx context.Context, id int64) (*model.Reservation, error)
	ListByTutor(ctx context.Context, tutorID string, from, to time.Time, statuses []model.ReservationStatus) ([]*model.Reservation, error)
	ListByPaymentID(ctx context.Context, paymentID string) ([]*model.Reservation, error)
	ListExpired(ctx context.Context, now time.Time) ([]*model.Reservation, error)
	ExpireNext(ctx context.Context, id int64, now time.Time) (*model.Reservation, error)
	TransitionStatus(ctx context.Context, id int64, from []model.ReservationStatus, to model.ReservationStatus) (*model.Reservation, error)
	TransitionByPayment(ctx context.Context, paymentID, studentID, tutorID string, from []model.ReservationStatus, to model.ReservationStatus) ([]*model.Reservation, error)
	ConfirmWithReview(ctx context.Context, id int64, from []model.ReservationStatus, review *model.Review) (*model.Reservation, error)
}

type AvailabilityStore interface {
	GetWeekly(ctx context.Context, tutorID string) (*model.WeeklyAvailability, error)
	ReplaceWeekly(ctx context.Context, availability *model.WeeklyAvailability) error
}

type CategoryStore interface {
	GetByID(ctx context.Context, id int64) (*model.Category, error)
	GetByCode(ctx context.Context, code string) (*model.Category, error)
}

// Notifier доставляет уведомление; ошибка только логируется
type Notifier interface {
	Notify(ctx context.Context, notification model.Notification) error
}

// EventPublisher публикует события жизненного цикла занятий
type EventPublisher interface {
	PublishReservationCreated(ctx context.Context, reservation *model.Reservation) error
	PublishStatusChanged(ctx context.Context, reservation *model.Reservation, from model.ReservationStatus) error
}
