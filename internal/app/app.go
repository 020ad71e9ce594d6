package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/api"
	"github.com/Freeeeeet/classroom_scheduler/internal/config"
	"github.com/Freeeeeet/classroom_scheduler/internal/controller"
	"github.com/Freeeeeet/classroom_scheduler/internal/events"
	"github.com/Freeeeeet/classroom_scheduler/internal/notify"
	"github.com/Freeeeeet/classroom_scheduler/internal/repository"
	"github.com/Freeeeeet/classroom_scheduler/internal/service"
	"github.com/Freeeeeet/classroom_scheduler/internal/tracing"
	"github.com/Freeeeeet/classroom_scheduler/migrations"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "classroom-scheduler"

// App — собранные зависимости процесса
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool      *pgxpool.Pool
	redis     *redis.Client
	telegram  *bot.Bot
	publisher *events.NatsPublisher
	shutdown  tracing.ShutdownFunc

	profiles     *repository.ProfileRepository
	categories   *repository.CategoryRepository
	Lifecycle    *service.LifecycleService
	Booking      *service.BookingService
	Availability *service.AvailabilityService
	Links        *service.LinkService
}

// New подключается к внешним системам и собирает сервисы.
// Необязательные интеграции (Telegram, NATS, Redis, OTEL) отключаются пустой настройкой.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	shutdown, err := tracing.InitTracerProvider(ctx, cfg.OtelEndpoint, serviceName, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.shutdown = shutdown

	a.pool, err = pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := a.pool.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("✅ Connected to database")

	if cfg.MigrationsOnStart {
		if err := a.migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.redis = NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, logger)

	var publisher service.EventPublisher = events.NoopPublisher{}
	if cfg.NatsURL != "" {
		a.publisher, err = events.NewNatsPublisher(cfg.NatsURL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		publisher = a.publisher
		logger.Info("✅ Connected to NATS", zap.String("url", cfg.NatsURL))
	}

	reservations := repository.NewReservationRepository(a.pool, logger)
	availability := repository.NewAvailabilityRepository(a.pool, logger)
	categories := repository.NewCategoryRepository(a.pool, logger)
	a.categories = categories
	a.profiles = repository.NewProfileRepository(a.pool)

	senders := []notify.Sender{notify.NewLogSender(logger)}
	if cfg.TelegramToken != "" {
		a.telegram, err = bot.New(cfg.TelegramToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		senders = append(senders, notify.NewTelegramSender(a.telegram, a.profiles, logger))
	}
	notifier := notify.NewFanout(senders...)

	bookingCfg := service.BookingConfig{
		ConflictMode:      service.ConflictMode(cfg.ConflictMode),
		BaseURL:           cfg.AppBaseURL,
		FirstHour:         cfg.FirstHour,
		LastHour:          cfg.LastHour,
		OperatorProfileID: cfg.OperatorProfileID,
		Now:               time.Now,
	}

	a.Lifecycle = service.NewLifecycleService(reservations, notifier, publisher, bookingCfg, logger)
	a.Booking = service.NewBookingService(reservations, categories, a.Lifecycle, notifier, publisher, bookingCfg, logger)
	a.Availability = service.NewAvailabilityService(availability, reservations, bookingCfg, logger)
	a.Links = service.NewLinkService(repository.NewLinkCodeRepository(a.pool), a.profiles, cfg.LinkCodeTTL, logger)

	return a, nil
}

func (a *App) migrate(ctx context.Context) error {
	migrator, err := NewMigrator(a.pool, migrations.FS)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}

// Serve запускает HTTP API, бота и планировщик до отмены контекста
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.SweepInterval > 0 {
		var locker Locker
		if a.redis != nil {
			locker = NewRedisLocker(a.redis)
		}
		scheduler := NewScheduler(a.Lifecycle, locker, a.cfg.SweepInterval, a.logger)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	if a.telegram != nil {
		botController := controller.NewBotController(a.telegram, a.Booking, a.profiles, a.Links, a.Availability, a.logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			a.logger.Warn("Failed to register bot commands", zap.Error(err))
		}
		go botController.Start(ctx)
	}

	server := api.NewApp(api.RouterConfig{
		ServiceName:    serviceName,
		InternalSecret: a.cfg.InternalSecret,
		Booking:        api.NewBookingHandler(a.Booking, a.Lifecycle, a.logger),
		Availability:   api.NewAvailabilityHandler(a.Availability, time.Now, a.logger),
		Categories:     api.NewCategoryHandler(a.categories, a.logger),
		Profiles:       api.NewProfileHandler(a.Links, a.logger),
	})

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("🚀 HTTP API listening", zap.String("addr", a.cfg.HTTPAddr))
		errCh <- server.Listen(a.cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close освобождает соединения в обратном порядке
func (a *App) Close() {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(context.Background()))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Errors while closing", zap.Error(err))
	}
}
