package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const sweepLockKey = "classroom_scheduler:sweep"

// Sweeper — плановый перевод просроченных занятий
type Sweeper interface {
	RunExpirySweep(ctx context.Context) (int, error)
}

// Locker не даёт нескольким репликам запускать проход одновременно
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	sweeper  Sweeper
	locker   Locker
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик; locker может быть nil
func NewScheduler(sweeper Sweeper, locker Locker, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		locker:   locker,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	go s.runSweepTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт завершения текущего прохода
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	<-s.done
}

// runSweepTask периодически переводит прошедшие занятия в NOTCONFIRMED
func (s *Scheduler) runSweepTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("Sweep task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Sweep task cancelled")
			return
		}
	}
}

// RunOnce выполняет один проход, если удалось взять блокировку.
// Возвращает false, когда проход выполняет другая реплика.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
		if err != nil {
			s.logger.Error("Failed to acquire sweep lock", zap.Error(err))
			return false
		}
		if !ok {
			s.logger.Debug("Sweep already running on another replica")
			return false
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey); err != nil {
				s.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	n, err := s.sweeper.RunExpirySweep(ctx)
	if err != nil {
		s.logger.Error("Expiry sweep failed", zap.Error(err))
		return true
	}

	s.logger.Info("Expiry sweep completed", zap.Int("transitioned", n))
	return true
}
