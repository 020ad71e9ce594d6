package api

import (
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig — зависимости HTTP-слоя
type RouterConfig struct {
	ServiceName    string
	InternalSecret string
	Booking        *BookingHandler
	Availability   *AvailabilityHandler
	Categories     *CategoryHandler
	Profiles       *ProfileHandler
}

// NewApp собирает fiber-приложение со всеми маршрутами
func NewApp(cfg RouterConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.ServiceName,
		DisableStartupMessage: true,
	})
	app.Use(otelfiber.Middleware())
	app.Use(PrometheusMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.ServiceName})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")
	v1.Get("/categories", cfg.Categories.List)

	reservations := v1.Group("/reservations")
	reservations.Post("/", cfg.Booking.CreateReservation)
	reservations.Get("/:id", cfg.Booking.GetReservation)
	reservations.Post("/:id/cancel", cfg.Booking.CancelReservation)
	reservations.Post("/:id/confirm", cfg.Booking.ConfirmReservation)
	reservations.Post("/:id/reschedule", cfg.Booking.RescheduleReservation)

	v1.Post("/packages", cfg.Booking.CreatePackage)
	v1.Post("/payments/webhook", cfg.Booking.PaymentWebhook)

	tutors := v1.Group("/tutors/:id")
	tutors.Get("/slots", cfg.Availability.GetSlots)
	tutors.Get("/reservations", cfg.Booking.ListTutorReservations)
	tutors.Get("/availability", cfg.Availability.GetAvailability)
	tutors.Put("/availability", cfg.Availability.PutAvailability)
	tutors.Post("/availability/toggle", cfg.Availability.ToggleSlot)

	internal := app.Group("/internal", InternalAuthMiddleware(cfg.InternalSecret))
	internal.Post("/sweep", cfg.Booking.RunSweep)
	internal.Post("/profiles/:id/link-code", cfg.Profiles.IssueLinkCode)

	return app
}
