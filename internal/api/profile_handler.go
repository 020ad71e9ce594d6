package api

import (
	"context"
	"errors"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type LinkCodeIssuer interface {
	IssueCode(ctx context.Context, profileID string) (*model.LinkCode, error)
}

// ProfileHandler выдаёт коды привязки Telegram по запросу личного кабинета
type ProfileHandler struct {
	links  LinkCodeIssuer
	logger *zap.Logger
}

func NewProfileHandler(links LinkCodeIssuer, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{links: links, logger: logger}
}

func (h *ProfileHandler) IssueLinkCode(c *fiber.Ctx) error {
	profileID := c.Params("id")
	if profileID == "" {
		return badRequest(c, "Invalid profile ID", errors.New("empty profile id"))
	}

	code, err := h.links.IssueCode(c.UserContext(), profileID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"code":       code.Code,
		"command":    "/start " + code.Code,
		"expires_at": code.ExpiresAt,
	})
}
