package notify

import (
	"context"
	"errors"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"go.uber.org/zap"
)

// Sender — любой канал доставки
type Sender interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Fanout рассылает уведомление во все каналы; сбой одного не мешает остальным
type Fanout struct {
	senders []Sender
}

func NewFanout(senders ...Sender) *Fanout {
	return &Fanout{senders: senders}
}

func (f *Fanout) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range f.senders {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSender пишет уведомления в лог; используется, когда Telegram не настроен
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Notify(ctx context.Context, n model.Notification) error {
	s.logger.Info("Notification",
		zap.String("profile_id", n.ProfileID),
		zap.Bool("is_staff", n.IsStaff),
		zap.Int64("reservation_id", n.ReservationID),
		zap.String("action", string(n.Action)),
		zap.String("url", n.URL),
		zap.String("message", n.Message))
	return nil
}
