package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/service"
	"github.com/Freeeeeet/classroom_scheduler/internal/timeslot"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// BookingService — операции оркестратора, доступные через HTTP
type BookingService interface {
	CreateSingleReservation(ctx context.Context, req service.BookingRequest) (*service.BookingResult, error)
	CreatePackageReservations(ctx context.Context, pc service.PaymentContext, slots []service.SlotRequest) ([]*model.Reservation, error)
	HandlePaymentOutcome(ctx context.Context, outcome service.PaymentOutcome) (*service.PaymentOutcomeResult, error)
	CancelReservation(ctx context.Context, id int64) (*model.Reservation, error)
	ConfirmReservation(ctx context.Context, id int64, review model.Review) (*model.Reservation, error)
	RescheduleReservation(ctx context.Context, id int64, date, timeRange string) (*model.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	ListTutorReservations(ctx context.Context, tutorID string, from, to timeslot.CalendarDate) ([]*model.Reservation, error)
}

// Sweeper — единственная точка входа планового перевода просроченных занятий
type Sweeper interface {
	RunExpirySweep(ctx context.Context) (int, error)
}

type BookingHandler struct {
	booking  BookingService
	sweeper  Sweeper
	validate *validator.Validate
	logger   *zap.Logger
}

func NewBookingHandler(booking BookingService, sweeper Sweeper, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		booking:  booking,
		sweeper:  sweeper,
		validate: validator.New(),
		logger:   logger,
	}
}

type CreateReservationRequest struct {
	StudentID          string `json:"student_id" validate:"required"`
	TutorID            string `json:"tutor_id" validate:"required,nefield=StudentID"`
	CategoryID         int64  `json:"category_id" validate:"required,gt=0"`
	Date               string `json:"date" validate:"required"`
	Time               string `json:"time" validate:"required"`
	Duration           string `json:"duration" validate:"required"`
	Cost               int64  `json:"cost" validate:"gte=0"`
	Title              string `json:"title" validate:"max=200"`
	RequestDescription string `json:"request_description" validate:"max=2000"`
}

type PackageSlotRequest struct {
	Date               string `json:"date" validate:"required"`
	Time               string `json:"time" validate:"required"`
	Category           string `json:"category" validate:"required"`
	Cost               int64  `json:"cost" validate:"gte=0"`
	Title              string `json:"title" validate:"max=200"`
	RequestDescription string `json:"request_description" validate:"max=2000"`
}

type CreatePackageRequest struct {
	StudentID  string               `json:"student_id" validate:"required"`
	TutorID    string               `json:"tutor_id" validate:"required,nefield=StudentID"`
	PurchaseID string               `json:"purchase_id" validate:"omitempty,max=100"`
	Slots      []PackageSlotRequest `json:"slots" validate:"required,min=1,dive"`
}

type PaymentWebhookRequest struct {
	ExternalReference string `json:"external_reference" validate:"required"`
	Status            string `json:"status" validate:"required"`
	PaymentID         string `json:"payment_id"`
}

type ConfirmRequest struct {
	AuthorID string `json:"author_id" validate:"required"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Comment  string `json:"comment" validate:"max=2000"`
}

type RescheduleRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

// CreateReservation — прямой запрос студента на один слот
func (h *BookingHandler) CreateReservation(c *fiber.Ctx) error {
	var request CreateReservationRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON", err)
	}
	if err := h.validate.Struct(&request); err != nil {
		return badRequest(c, "Invalid input", err)
	}

	result, err := h.booking.CreateSingleReservation(c.UserContext(), service.BookingRequest{
		StudentID:          request.StudentID,
		TutorID:            request.TutorID,
		CategoryID:         request.CategoryID,
		Date:               request.Date,
		Time:               request.Time,
		Duration:           request.Duration,
		CostCents:          request.Cost,
		Title:              request.Title,
		RequestDescription: request.RequestDescription,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":        result.Success,
		"reservation_id": result.ReservationID,
		"reservation":    result.Reservation,
	})
}

// CreatePackage создаёт занятия пакета под платёжную преференцию и
// возвращает внешнюю ссылку, которую нужно передать платёжному шлюзу
func (h *BookingHandler) CreatePackage(c *fiber.Ctx) error {
	var request CreatePackageRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON", err)
	}
	if err := h.validate.Struct(&request); err != nil {
		return badRequest(c, "Invalid input", err)
	}

	ref, err := service.NewReference(request.StudentID, request.TutorID, request.PurchaseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	slots := make([]service.SlotRequest, 0, len(request.Slots))
	for _, s := range request.Slots {
		slots = append(slots, service.SlotRequest{
			Date:               s.Date,
			Time:               s.Time,
			CategoryCode:       s.Category,
			CostCents:          s.Cost,
			Title:              s.Title,
			RequestDescription: s.RequestDescription,
		})
	}

	reservations, err := h.booking.CreatePackageReservations(c.UserContext(), service.PaymentContext{
		PaymentID: ref.PurchaseID,
		StudentID: ref.StudentID,
		TutorID:   ref.TutorID,
	}, slots)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":            true,
		"external_reference": ref.Encode(),
		"payment_id":         ref.PurchaseID,
		"reservations":       reservations,
	})
}

// PaymentWebhook применяет исход платежа. На некорректную ссылку шлюз
// получает 200 с accepted=false и не повторяет доставку.
func (h *BookingHandler) PaymentWebhook(c *fiber.Ctx) error {
	var request PaymentWebhookRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON", err)
	}
	if err := h.validate.Struct(&request); err != nil {
		return badRequest(c, "Invalid input", err)
	}

	result, err := h.booking.HandlePaymentOutcome(c.UserContext(), service.PaymentOutcome{
		ExternalReference: request.ExternalReference,
		Status:            request.Status,
		PaymentID:         request.PaymentID,
	})
	if err != nil {
		if errors.Is(err, service.ErrMalformedReference) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"accepted": false,
				"error":    err.Error(),
			})
		}
		return respondError(c, h.logger, err)
	}

	ids := make([]int64, 0, len(result.Transitioned))
	for _, r := range result.Transitioned {
		ids = append(ids, r.ID)
	}

	return c.JSON(fiber.Map{
		"accepted":         true,
		"status":           result.Status,
		"transitioned":     ids,
		"unknown_purchase": result.UnknownPurchase,
	})
}

func (h *BookingHandler) GetReservation(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid reservation ID", err)
	}

	reservation, err := h.booking.GetReservation(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(reservation)
}

func (h *BookingHandler) CancelReservation(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid reservation ID", err)
	}

	reservation, err := h.booking.CancelReservation(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "reservation": reservation})
}

func (h *BookingHandler) ConfirmReservation(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid reservation ID", err)
	}

	var request ConfirmRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON", err)
	}
	if err := h.validate.Struct(&request); err != nil {
		return badRequest(c, "Invalid input", err)
	}

	reservation, err := h.booking.ConfirmReservation(c.UserContext(), id, model.Review{
		ReservationID: id,
		AuthorID:      request.AuthorID,
		Rating:        request.Rating,
		Comment:       request.Comment,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "reservation": reservation})
}

func (h *BookingHandler) RescheduleReservation(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid reservation ID", err)
	}

	var request RescheduleRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Cannot parse JSON", err)
	}
	if err := h.validate.Struct(&request); err != nil {
		return badRequest(c, "Invalid input", err)
	}

	reservation, err := h.booking.RescheduleReservation(c.UserContext(), id, request.Date, request.Time)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "reservation": reservation})
}

// ListTutorReservations — занятия преподавателя с началом в [from, to]
func (h *BookingHandler) ListTutorReservations(c *fiber.Ctx) error {
	from, err := timeslot.ParseCalendarDate(c.Query("from"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	to, err := timeslot.ParseCalendarDate(c.Query("to", c.Query("from")))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	reservations, err := h.booking.ListTutorReservations(c.UserContext(), c.Params("id"), from, to)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"reservations": reservations})
}

// RunSweep — триггер для внешнего планировщика
func (h *BookingHandler) RunSweep(c *fiber.Ctx) error {
	n, err := h.sweeper.RunExpirySweep(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"transitioned": n})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive, got %d", id)
	}
	return id, nil
}
