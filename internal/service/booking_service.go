package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/repository"
	"github.com/Freeeeeet/classroom_scheduler/internal/timeslot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/Freeeeeet/classroom_scheduler/internal/service")

// BookingRequest — прямой запрос студента на один слот
type BookingRequest struct {
	StudentID          string
	TutorID            string
	CategoryID         int64
	Date               string // YYYY-MM-DD
	Time               string // "HH:mm AM - HH:mm AM"
	Duration           string // минуты
	CostCents          int64
	Title              string
	RequestDescription string
}

type BookingResult struct {
	Success       bool
	ReservationID int64
	Reservation   *model.Reservation
}

// SlotRequest — один слот пакета; категория задаётся строковым кодом
type SlotRequest struct {
	Date               string
	Time               string
	CategoryCode       string
	CostCents          int64
	Title              string
	RequestDescription string
}

// PaymentContext — платёжная преференция, под которую создаётся пакет
type PaymentContext struct {
	PaymentID string
	StudentID string
	TutorID   string
}

// PaymentOutcome — входящий вебхук платёжного шлюза
type PaymentOutcome struct {
	ExternalReference string
	Status            string
	PaymentID         string // id платежа на стороне шлюза, в связывание не входит
}

type PaymentOutcomeResult struct {
	Status       model.PaymentStatus
	Reference    Reference
	Transitioned []*model.Reservation
	// UnknownPurchase — по ссылке не нашлось ни одного занятия пакета
	UnknownPurchase bool
}

// BookingService — единая точка входа: прямые запросы, пакеты и исходы платежей
type BookingService struct {
	reservations ReservationStore
	categories   CategoryStore
	checker      *ConflictChecker
	lifecycle    *LifecycleService
	dispatch     *dispatcher
	cfg          BookingConfig
	logger       *zap.Logger
}

func NewBookingService(
	reservations ReservationStore,
	categories CategoryStore,
	lifecycle *LifecycleService,
	notifier Notifier,
	events EventPublisher,
	cfg BookingConfig,
	logger *zap.Logger,
) *BookingService {
	cfg = cfg.withDefaults()
	return &BookingService{
		reservations: reservations,
		categories:   categories,
		checker:      NewConflictChecker(cfg.ConflictMode),
		lifecycle:    lifecycle,
		dispatch:     &dispatcher{notifier: notifier, events: events, cfg: cfg, logger: logger},
		cfg:          cfg,
		logger:       logger,
	}
}

// CreateSingleReservation проверяет запрос и под блокировкой преподавателя
// создаёт занятие в статусе REQUESTED
func (s *BookingService) CreateSingleReservation(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CreateSingleReservation",
		trace.WithAttributes(attribute.String("tutor_id", req.TutorID)))
	defer span.End()

	reservation, err := s.buildSingle(ctx, req)
	if err != nil {
		return nil, s.reject(span, err)
	}

	err = s.reservations.WithTutorLock(ctx, req.TutorID, func(ctx context.Context, tx repository.ReservationTx) error {
		if err := s.checker.Admit(ctx, tx, reservation.TutorID, reservation.BeginsAt, reservation.EndsAt, 0); err != nil {
			return err
		}
		return tx.Insert(ctx, reservation)
	})
	if err != nil {
		return nil, s.reject(span, writeError("create reservation", err))
	}

	reservationsCreated.WithLabelValues("single").Inc()
	span.SetAttributes(attribute.Int64("reservation_id", reservation.ID))

	s.logger.Info("Reservation requested",
		zap.Int64("reservation_id", reservation.ID),
		zap.String("student_id", reservation.StudentID),
		zap.String("tutor_id", reservation.TutorID),
		zap.Time("begins_at", reservation.BeginsAt))

	s.dispatch.created(ctx, reservation)
	s.dispatch.notify(ctx, model.Notification{
		ProfileID:     reservation.TutorID,
		Message:       fmt.Sprintf("📅 Новый запрос на занятие %s", reservation.BeginsAt.Format("02.01.2006 15:04")),
		URL:           s.dispatch.reservationURL(reservation.ID),
		ReservationID: reservation.ID,
		Action:        model.NotificationActionManage,
	})

	return &BookingResult{Success: true, ReservationID: reservation.ID, Reservation: reservation}, nil
}

// CreatePackageReservations создаёт по занятию на каждый слот пакета в статусе CREATED.
// Все вставки идут в одной транзакции: создаются либо все слоты, либо ни одного.
func (s *BookingService) CreatePackageReservations(ctx context.Context, pc PaymentContext, slots []SlotRequest) ([]*model.Reservation, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CreatePackageReservations",
		trace.WithAttributes(
			attribute.String("tutor_id", pc.TutorID),
			attribute.String("payment_id", pc.PaymentID),
			attribute.Int("slots", len(slots))))
	defer span.End()

	if pc.PaymentID == "" || pc.StudentID == "" || pc.TutorID == "" {
		return nil, s.reject(span, fmt.Errorf("%w: payment, student and tutor ids are required", ErrInvalidRequest))
	}
	if pc.StudentID == pc.TutorID {
		return nil, s.reject(span, fmt.Errorf("%w: student and tutor must differ", ErrInvalidRequest))
	}
	if len(slots) == 0 {
		return nil, s.reject(span, fmt.Errorf("%w: package has no slots", ErrInvalidRequest))
	}

	now := s.cfg.now()
	paymentID := pc.PaymentID
	reservations := make([]*model.Reservation, 0, len(slots))
	categories := make(map[string]*model.Category)

	for i, slot := range slots {
		beginsAt, endsAt, err := timeslot.ParseSlot(slot.Date, slot.Time)
		if err != nil {
			return nil, s.reject(span, fmt.Errorf("slot %d: %w", i+1, err))
		}
		if beginsAt.Before(now) {
			return nil, s.reject(span, fmt.Errorf("%w: slot %d is in the past", ErrInvalidRequest, i+1))
		}

		category, ok := categories[slot.CategoryCode]
		if !ok {
			if category, err = s.resolveCategoryCode(ctx, slot.CategoryCode); err != nil {
				return nil, s.reject(span, fmt.Errorf("slot %d: %w", i+1, err))
			}
			categories[slot.CategoryCode] = category
		}

		candidate := &model.Reservation{
			TutorID:            pc.TutorID,
			StudentID:          pc.StudentID,
			CategoryID:         category.ID,
			BeginsAt:           beginsAt,
			EndsAt:             endsAt,
			DurationMinutes:    int(endsAt.Sub(beginsAt) / time.Minute),
			Title:              slot.Title,
			RequestDescription: slot.RequestDescription,
			CostCents:          slot.CostCents,
			Status:             model.ReservationStatusCreated,
			PaymentID:          &paymentID,
		}

		// слоты одного пакета тоже не должны пересекаться между собой
		for j, prev := range reservations {
			if s.packageClash(prev, candidate) {
				return nil, s.reject(span, fmt.Errorf("%w: slots %d and %d of the package clash", ErrSlotUnavailable, j+1, i+1))
			}
		}
		reservations = append(reservations, candidate)
	}

	err := s.reservations.WithTutorLock(ctx, pc.TutorID, func(ctx context.Context, tx repository.ReservationTx) error {
		for i, r := range reservations {
			if err := s.checker.Admit(ctx, tx, r.TutorID, r.BeginsAt, r.EndsAt, 0); err != nil {
				return fmt.Errorf("slot %d: %w", i+1, err)
			}
			if err := tx.Insert(ctx, r); err != nil {
				return fmt.Errorf("slot %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		// транзакция откатилась, ID из неё недействительны
		for _, r := range reservations {
			r.ID = 0
		}
		return nil, s.reject(span, writeError("create package", err))
	}

	reservationsCreated.WithLabelValues("package").Add(float64(len(reservations)))

	s.logger.Info("Package reservations created",
		zap.String("payment_id", paymentID),
		zap.String("student_id", pc.StudentID),
		zap.String("tutor_id", pc.TutorID),
		zap.Int("count", len(reservations)))

	for _, r := range reservations {
		s.dispatch.created(ctx, r)
	}

	return reservations, nil
}

// HandlePaymentOutcome переводит все занятия пакета по исходу платежа.
// approved -> NEXT, rejected/cancelled -> CANCELLED, pending ничего не меняет.
// Повторная доставка того же вебхука не переводит строки и не шлёт уведомления.
func (s *BookingService) HandlePaymentOutcome(ctx context.Context, outcome PaymentOutcome) (*PaymentOutcomeResult, error) {
	ctx, span := tracer.Start(ctx, "BookingService.HandlePaymentOutcome",
		trace.WithAttributes(attribute.String("payment_id", outcome.PaymentID)))
	defer span.End()

	ref, err := ParseReference(outcome.ExternalReference)
	if err != nil {
		paymentOutcomes.WithLabelValues("malformed").Inc()
		s.logger.Error("Malformed payment reference, webhook will not be retried",
			zap.String("external_reference", outcome.ExternalReference),
			zap.String("payment_id", outcome.PaymentID),
			zap.Error(err))
		s.dispatch.notify(ctx, s.dispatch.operator(fmt.Sprintf(
			"⚠️ Платёж %s пришёл с некорректной ссылкой %q", outcome.PaymentID, outcome.ExternalReference))...)
		return nil, s.reject(span, err)
	}

	status, err := model.ParsePaymentStatus(outcome.Status)
	if err != nil {
		return nil, s.reject(span, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	paymentOutcomes.WithLabelValues(string(status)).Inc()

	result := &PaymentOutcomeResult{Status: status, Reference: ref}

	var target model.ReservationStatus
	switch {
	case status == model.PaymentStatusApproved:
		target = model.ReservationStatusNext
	case status.IsFailure():
		target = model.ReservationStatusCancelled
	default:
		s.logger.Info("Payment still pending", zap.String("payment_id", outcome.PaymentID))
		return result, nil
	}

	// пакет связан со ссылкой: payment_id занятий — это purchaseId, id шлюза только логируем
	paymentID := ref.PurchaseID
	if outcome.PaymentID != "" && outcome.PaymentID != paymentID {
		s.logger.Info("Gateway payment id differs from purchase id",
			zap.String("gateway_payment_id", outcome.PaymentID),
			zap.String("purchase_id", paymentID))
	}

	pending := []model.ReservationStatus{model.ReservationStatusRequested, model.ReservationStatusCreated}
	updated, err := s.reservations.TransitionByPayment(ctx, paymentID, ref.StudentID, ref.TutorID, pending, target)
	if err != nil {
		return nil, s.reject(span, persistence("transition package", err))
	}
	result.Transitioned = updated
	span.SetAttributes(attribute.Int("transitioned", len(updated)))

	if len(updated) == 0 {
		known, err := s.packageSize(ctx, ref)
		if err != nil {
			return nil, s.reject(span, persistence("list package", err))
		}
		if known == 0 {
			result.UnknownPurchase = true
			s.logger.Warn("Payment outcome for unknown purchase",
				zap.String("payment_id", paymentID),
				zap.String("student_id", ref.StudentID),
				zap.String("tutor_id", ref.TutorID))
			s.dispatch.notify(ctx, s.dispatch.operator(fmt.Sprintf(
				"⚠️ Платёж %s (%s) не связан ни с одним занятием", paymentID, outcome.Status))...)
			return result, nil
		}
		s.logger.Info("Payment outcome already applied",
			zap.String("payment_id", paymentID),
			zap.String("status", string(status)))
		return result, nil
	}

	s.logger.Info("Package transitioned by payment",
		zap.String("payment_id", paymentID),
		zap.String("status", string(status)),
		zap.String("target", target.String()),
		zap.Int("count", len(updated)))

	for _, r := range updated {
		// пакеты создаются в CREATED, прямые запросы в REQUESTED
		from := model.ReservationStatusCreated
		if r.PaymentID == nil {
			from = model.ReservationStatusRequested
		}
		s.dispatch.statusChanged(ctx, r, from)
	}

	// одно уведомление каждой стороне на весь пакет
	var message string
	if target == model.ReservationStatusNext {
		message = fmt.Sprintf("✅ Оплата подтверждена, запланировано занятий: %d", len(updated))
	} else {
		message = fmt.Sprintf("❌ Оплата не прошла, отменено занятий: %d", len(updated))
	}
	first := updated[0]
	url := s.cfg.url("/class-rooms")
	s.dispatch.notify(ctx,
		model.Notification{ProfileID: first.StudentID, Message: message, URL: url, ReservationID: first.ID},
		model.Notification{ProfileID: first.TutorID, Message: message, URL: url, ReservationID: first.ID},
	)

	return result, nil
}

// packageSize считает занятия покупки, принадлежащие паре студент-преподаватель из ссылки
func (s *BookingService) packageSize(ctx context.Context, ref Reference) (int, error) {
	siblings, err := s.reservations.ListByPaymentID(ctx, ref.PurchaseID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range siblings {
		if r.StudentID == ref.StudentID && r.TutorID == ref.TutorID {
			n++
		}
	}
	return n, nil
}

// CancelReservation — явная отмена
func (s *BookingService) CancelReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CancelReservation",
		trace.WithAttributes(attribute.Int64("reservation_id", id)))
	defer span.End()

	reservation, err := s.lifecycle.Cancel(ctx, id)
	if err != nil {
		return nil, s.reject(span, err)
	}
	return reservation, nil
}

// ConfirmReservation — подтверждение проведённого занятия отзывом
func (s *BookingService) ConfirmReservation(ctx context.Context, id int64, review model.Review) (*model.Reservation, error) {
	ctx, span := tracer.Start(ctx, "BookingService.ConfirmReservation",
		trace.WithAttributes(attribute.Int64("reservation_id", id)))
	defer span.End()

	reservation, err := s.lifecycle.Confirm(ctx, id, review)
	if err != nil {
		return nil, s.reject(span, err)
	}
	return reservation, nil
}

// RescheduleReservation переносит занятие на новый слот, заново проверяя конфликты
// без учёта самого занятия
func (s *BookingService) RescheduleReservation(ctx context.Context, id int64, date, timeRange string) (*model.Reservation, error) {
	ctx, span := tracer.Start(ctx, "BookingService.RescheduleReservation",
		trace.WithAttributes(attribute.Int64("reservation_id", id)))
	defer span.End()

	beginsAt, endsAt, err := timeslot.ParseSlot(date, timeRange)
	if err != nil {
		return nil, s.reject(span, err)
	}
	if beginsAt.Before(s.cfg.now()) {
		return nil, s.reject(span, fmt.Errorf("%w: new slot is in the past", ErrInvalidRequest))
	}

	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, s.reject(span, persistence("get reservation", err))
	}
	if current == nil {
		return nil, s.reject(span, fmt.Errorf("%w: %d", ErrReservationNotFound, id))
	}

	var moved *model.Reservation
	err = s.reservations.WithTutorLock(ctx, current.TutorID, func(ctx context.Context, tx repository.ReservationTx) error {
		locked, err := tx.GetByID(ctx, id)
		if err != nil {
			return persistence("lock reservation", err)
		}
		if locked == nil {
			return fmt.Errorf("%w: %d", ErrReservationNotFound, id)
		}
		if locked.Status.IsTerminal() {
			return fmt.Errorf("%w: reservation %d is %s", ErrAlreadyTerminal, id, locked.Status)
		}
		if !locked.Status.HoldsSlot() {
			return fmt.Errorf("%w: %s reservation cannot be rescheduled", ErrInvalidTransition, locked.Status)
		}

		if err := s.checker.Admit(ctx, tx, locked.TutorID, beginsAt, endsAt, id); err != nil {
			return err
		}

		duration := int(endsAt.Sub(beginsAt) / time.Minute)
		if err := tx.UpdateSlot(ctx, id, beginsAt, endsAt, duration); err != nil {
			return err
		}

		locked.BeginsAt, locked.EndsAt, locked.DurationMinutes = beginsAt, endsAt, duration
		moved = locked
		return nil
	})
	if err != nil {
		return nil, s.reject(span, writeError("reschedule reservation", err))
	}

	s.logger.Info("Reservation rescheduled",
		zap.Int64("reservation_id", id),
		zap.Time("begins_at", beginsAt))

	s.dispatch.notify(ctx, s.dispatch.bothParties(moved,
		fmt.Sprintf("🔁 Занятие перенесено на %s", beginsAt.Format("02.01.2006 15:04")),
		model.NotificationActionManage)...)

	return moved, nil
}

// ListTutorReservations возвращает занятия преподавателя с началом в [from, to]
func (s *BookingService) ListTutorReservations(ctx context.Context, tutorID string, from, to timeslot.CalendarDate) ([]*model.Reservation, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidRequest, to, from)
	}

	all := []model.ReservationStatus{
		model.ReservationStatusRequested,
		model.ReservationStatusCreated,
		model.ReservationStatusNext,
		model.ReservationStatusConfirmed,
		model.ReservationStatusNotConfirmed,
		model.ReservationStatusCancelled,
	}
	reservations, err := s.reservations.ListByTutor(ctx, tutorID, from.Time(), to.AddDays(1).Time(), all)
	if err != nil {
		return nil, persistence("list tutor reservations", err)
	}
	return reservations, nil
}

// GetReservation получает занятие по ID
func (s *BookingService) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, persistence("get reservation", err)
	}
	if reservation == nil {
		return nil, fmt.Errorf("%w: %d", ErrReservationNotFound, id)
	}
	return reservation, nil
}

// buildSingle разбирает запрос до любых записей в хранилище
func (s *BookingService) buildSingle(ctx context.Context, req BookingRequest) (*model.Reservation, error) {
	if req.StudentID == "" || req.TutorID == "" {
		return nil, fmt.Errorf("%w: student and tutor ids are required", ErrInvalidRequest)
	}
	if req.StudentID == req.TutorID {
		return nil, fmt.Errorf("%w: student and tutor must differ", ErrInvalidRequest)
	}
	if req.CostCents < 0 {
		return nil, fmt.Errorf("%w: cost cannot be negative", ErrInvalidRequest)
	}

	beginsAt, endsAt, err := timeslot.ParseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	duration, err := strconv.Atoi(strings.TrimSpace(req.Duration))
	if err != nil || duration <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDuration, req.Duration)
	}
	if span := int(endsAt.Sub(beginsAt) / time.Minute); span != duration {
		return nil, fmt.Errorf("%w: %d minutes requested for a %d minute slot", ErrInvalidDuration, duration, span)
	}

	if beginsAt.Before(s.cfg.now()) {
		return nil, fmt.Errorf("%w: slot is in the past", ErrInvalidRequest)
	}

	category, err := s.categories.GetByID(ctx, req.CategoryID)
	if err != nil {
		return nil, persistence("get category", err)
	}
	if category == nil || !category.IsActive {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCategory, req.CategoryID)
	}

	return &model.Reservation{
		TutorID:            req.TutorID,
		StudentID:          req.StudentID,
		CategoryID:         category.ID,
		BeginsAt:           beginsAt,
		EndsAt:             endsAt,
		DurationMinutes:    duration,
		Title:              req.Title,
		RequestDescription: req.RequestDescription,
		CostCents:          req.CostCents,
		Status:             model.ReservationStatusRequested,
		Confirmed:          false,
	}, nil
}

func (s *BookingService) resolveCategoryCode(ctx context.Context, code string) (*model.Category, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", ErrUnknownCategory)
	}
	category, err := s.categories.GetByCode(ctx, code)
	if err != nil {
		return nil, persistence("get category by code", err)
	}
	if category == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, code)
	}
	return category, nil
}

func (s *BookingService) packageClash(a, b *model.Reservation) bool {
	if s.checker.Mode() == ConflictModeExact {
		return a.BeginsAt.Equal(b.BeginsAt)
	}
	return a.Overlaps(b.BeginsAt, b.EndsAt)
}

// reject отмечает span и метрику отказа
func (s *BookingService) reject(span trace.Span, err error) error {
	kind := Kind(err)
	bookingsRejected.WithLabelValues(string(kind)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	if kind == KindInternal {
		s.logger.Error("Booking operation failed", zap.Error(err))
	}
	return err
}

// writeError приводит ошибку записи к доменной: уникальный индекс означает занятый слот
func writeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateSlot):
		return fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	case Kind(err) != KindInternal, errors.Is(err, ErrPersistence):
		return err
	default:
		return persistence(op, err)
	}
}
