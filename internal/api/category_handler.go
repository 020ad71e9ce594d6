package api

import (
	"context"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CategoryLister interface {
	List(ctx context.Context) ([]*model.Category, error)
}

// CategoryHandler отдаёт справочник предметов для формы пакета
type CategoryHandler struct {
	categories CategoryLister
	logger     *zap.Logger
}

func NewCategoryHandler(categories CategoryLister, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: logger}
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if categories == nil {
		categories = []*model.Category{}
	}
	return c.JSON(fiber.Map{"categories": categories})
}
