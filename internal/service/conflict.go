package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/repository"
)

// ConflictChecker решает, можно ли занять слот преподавателя. Только чтение.
type ConflictChecker struct {
	mode ConflictMode
}

func NewConflictChecker(mode ConflictMode) *ConflictChecker {
	if mode != ConflictModeExact {
		mode = ConflictModeOverlap
	}
	return &ConflictChecker{mode: mode}
}

func (c *ConflictChecker) Mode() ConflictMode {
	return c.mode
}

// CheckConflict возвращает занятия, удерживающие слот и мешающие кандидату
func (c *ConflictChecker) CheckConflict(ctx context.Context, q repository.ConflictQuerier, tutorID string, beginsAt, endsAt time.Time) ([]*model.Reservation, error) {
	if c.mode == ConflictModeExact {
		return q.FindHoldingByStart(ctx, tutorID, beginsAt, 0)
	}
	return q.FindHoldingOverlapping(ctx, tutorID, beginsAt, endsAt, 0)
}

// Admit возвращает ErrSlotUnavailable, если слот занят; excludeID исключает само занятие при переносе
func (c *ConflictChecker) Admit(ctx context.Context, q repository.ConflictQuerier, tutorID string, beginsAt, endsAt time.Time, excludeID int64) error {
	existing, err := c.CheckConflict(ctx, q, tutorID, beginsAt, endsAt)
	if err != nil {
		return persistence("check conflict", err)
	}
	for _, r := range existing {
		if r.ID != excludeID {
			return fmt.Errorf("%w: %s (reservation %d)", ErrSlotUnavailable, beginsAt.Format(time.RFC3339), r.ID)
		}
	}
	return nil
}
