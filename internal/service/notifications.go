package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"go.uber.org/zap"
)

// dispatcher рассылает уведомления и события; ошибки доставки не пробрасываются
type dispatcher struct {
	notifier Notifier
	events   EventPublisher
	cfg      BookingConfig
	logger   *zap.Logger
}

func (d *dispatcher) notify(ctx context.Context, notifications ...model.Notification) {
	if d.notifier == nil {
		return
	}
	for _, n := range notifications {
		if n.ProfileID == "" {
			continue
		}
		if err := d.notifier.Notify(ctx, n); err != nil {
			notificationFailures.Inc()
			d.logger.Warn("Failed to deliver notification",
				zap.String("profile_id", n.ProfileID),
				zap.Int64("reservation_id", n.ReservationID),
				zap.Error(err))
		}
	}
}

func (d *dispatcher) created(ctx context.Context, reservation *model.Reservation) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishReservationCreated(ctx, reservation); err != nil {
		d.logger.Warn("Failed to publish reservation.created",
			zap.Int64("reservation_id", reservation.ID),
			zap.Error(err))
	}
}

func (d *dispatcher) statusChanged(ctx context.Context, reservation *model.Reservation, from model.ReservationStatus) {
	statusTransitions.WithLabelValues(reservation.Status.String()).Inc()
	if d.events == nil {
		return
	}
	if err := d.events.PublishStatusChanged(ctx, reservation, from); err != nil {
		d.logger.Warn("Failed to publish reservation.status_changed",
			zap.Int64("reservation_id", reservation.ID),
			zap.Error(err))
	}
}

func (d *dispatcher) reservationURL(id int64) string {
	return d.cfg.url(fmt.Sprintf("/class-rooms/%d", id))
}

// rateInvitations — приглашение оценить прошедшее занятие обеим сторонам
func (d *dispatcher) rateInvitations(r *model.Reservation) []model.Notification {
	url := d.cfg.url(fmt.Sprintf("/class-rooms/%d/review", r.ID))
	when := r.BeginsAt.Format("02.01.2006 15:04")
	return []model.Notification{
		{
			ProfileID:     r.StudentID,
			Message:       fmt.Sprintf("⭐ Занятие %s завершилось. Оцените, как всё прошло", when),
			URL:           url,
			ReservationID: r.ID,
			Action:        model.NotificationActionRate,
		},
		{
			ProfileID:     r.TutorID,
			Message:       fmt.Sprintf("⭐ Занятие %s завершилось. Подтвердите, что оно состоялось", when),
			URL:           url,
			ReservationID: r.ID,
			Action:        model.NotificationActionRate,
		},
	}
}

// bothParties — одно и то же сообщение студенту и преподавателю
func (d *dispatcher) bothParties(r *model.Reservation, message string, action model.NotificationAction) []model.Notification {
	url := d.reservationURL(r.ID)
	return []model.Notification{
		{ProfileID: r.StudentID, Message: message, URL: url, ReservationID: r.ID, Action: action},
		{ProfileID: r.TutorID, Message: message, URL: url, ReservationID: r.ID, Action: action},
	}
}

// operator — сообщение в операторский канал, если он настроен
func (d *dispatcher) operator(message string) []model.Notification {
	if d.cfg.OperatorProfileID == "" {
		return nil
	}
	return []model.Notification{{
		ProfileID: d.cfg.OperatorProfileID,
		Message:   message,
		URL:       d.cfg.url("/admin/payments"),
		IsStaff:   true,
		Action:    model.NotificationActionOperator,
	}}
}
