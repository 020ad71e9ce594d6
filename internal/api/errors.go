package api

import (
	"github.com/Freeeeeet/classroom_scheduler/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor сопоставляет класс доменной ошибки с HTTP-статусом
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindInvalidInput:
		return fiber.StatusBadRequest
	case service.KindUnavailable, service.KindConflict:
		return fiber.StatusConflict
	case service.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError отдаёт {success:false, error, kind}; детали внутренних сбоев
// остаются в логе
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	kind := service.Kind(err)
	status := statusFor(kind)

	message := err.Error()
	if kind == service.KindInternal {
		logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		message = "internal error"
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"kind":    kind,
	})
}

func badRequest(c *fiber.Ctx, message string, details error) error {
	body := fiber.Map{"success": false, "error": message, "kind": service.KindInvalidInput}
	if details != nil {
		body["details"] = details.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
