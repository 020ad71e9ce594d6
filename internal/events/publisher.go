// Package events публикует события жизненного цикла занятий в NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectReservationCreated       = "reservation.created"
	SubjectReservationStatusChanged = "reservation.status_changed"
)

// ReservationCreatedEvent уходит после фиксации новой брони
type ReservationCreatedEvent struct {
	EventID       uuid.UUID `json:"event_id"`
	EventType     string    `json:"event_type"`
	ReservationID int64     `json:"reservation_id"`
	TutorID       string    `json:"tutor_id"`
	StudentID     string    `json:"student_id"`
	Status        string    `json:"status"`
	PaymentID     *string   `json:"payment_id,omitempty"`
	BeginsAt      time.Time `json:"begins_at"`
	EndsAt        time.Time `json:"ends_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// StatusChangedEvent уходит после каждого реально выполненного перехода
type StatusChangedEvent struct {
	EventID       uuid.UUID `json:"event_id"`
	EventType     string    `json:"event_type"`
	ReservationID int64     `json:"reservation_id"`
	TutorID       string    `json:"tutor_id"`
	StudentID     string    `json:"student_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// publisherConn — часть *nats.Conn, которой пользуется публикатор
type publisherConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type NatsPublisher struct {
	conn   publisherConn
	logger *zap.Logger
	now    func() time.Time
}

// NewNatsPublisher подключается к NATS и переподключается без ограничений
func NewNatsPublisher(natsURL string, logger *zap.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("classroom-scheduler"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return newPublisher(nc, logger), nil
}

func newPublisher(conn publisherConn, logger *zap.Logger) *NatsPublisher {
	return &NatsPublisher{conn: conn, logger: logger, now: time.Now}
}

func (p *NatsPublisher) PublishReservationCreated(ctx context.Context, r *model.Reservation) error {
	return p.publish(SubjectReservationCreated, ReservationCreatedEvent{
		EventID:       uuid.New(),
		EventType:     SubjectReservationCreated,
		ReservationID: r.ID,
		TutorID:       r.TutorID,
		StudentID:     r.StudentID,
		Status:        r.Status.String(),
		PaymentID:     r.PaymentID,
		BeginsAt:      r.BeginsAt,
		EndsAt:        r.EndsAt,
		OccurredAt:    p.now().UTC(),
	})
}

func (p *NatsPublisher) PublishStatusChanged(ctx context.Context, r *model.Reservation, from model.ReservationStatus) error {
	return p.publish(SubjectReservationStatusChanged, StatusChangedEvent{
		EventID:       uuid.New(),
		EventType:     SubjectReservationStatusChanged,
		ReservationID: r.ID,
		TutorID:       r.TutorID,
		StudentID:     r.StudentID,
		From:          from.String(),
		To:            r.Status.String(),
		OccurredAt:    p.now().UTC(),
	})
}

func (p *NatsPublisher) publish(subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug("Published event", zap.String("subject", subject))
	return nil
}

// Close дожидается отправки буфера и закрывает соединение
func (p *NatsPublisher) Close() error {
	return p.conn.Drain()
}

// NoopPublisher используется, когда NATS не настроен
type NoopPublisher struct{}

func (NoopPublisher) PublishReservationCreated(context.Context, *model.Reservation) error {
	return nil
}

func (NoopPublisher) PublishStatusChanged(context.Context, *model.Reservation, model.ReservationStatus) error {
	return nil
}
