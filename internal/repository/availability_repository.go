package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/repository/base"
	"github.com/Freeeeeet/classroom_scheduler/internal/timeslot"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AvailabilityRepository управляет еженедельной сеткой преподавателя
type AvailabilityRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewAvailabilityRepository создаёт новый репозиторий
func NewAvailabilityRepository(pool *pgxpool.Pool, logger *zap.Logger) *AvailabilityRepository {
	return &AvailabilityRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// GetWeekly возвращает сетку преподавателя; пустую, если он ничего не объявлял
func (r *AvailabilityRepository) GetWeekly(ctx context.Context, tutorID string) (*model.WeeklyAvailability, error) {
	query := `
		SELECT weekday, start_hour, end_hour, updated_at
		FROM weekly_availability
		WHERE tutor_id = $1
		ORDER BY weekday, start_hour
	`

	rows, err := r.Pool().Query(ctx, query, tutorID)
	if err != nil {
		return nil, fmt.Errorf("get weekly availability: %w", err)
	}
	defer rows.Close()

	availability := model.NewWeeklyAvailability(tutorID)
	for rows.Next() {
		var (
			weekday, startHour int
			endHour            *int
			updatedAt          time.Time
		)
		if err := rows.Scan(&weekday, &startHour, &endHour, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan availability range: %w", err)
		}

		day := timeslot.FromISOWeekday(weekday)
		availability.Days[day] = append(availability.Days[day], model.TimeRange{StartHour: startHour, EndHour: endHour})
		if updatedAt.After(availability.UpdatedAt) {
			availability.UpdatedAt = updatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability: %w", err)
	}

	return availability, nil
}

// ReplaceWeekly атомарно заменяет всю сетку преподавателя
func (r *AvailabilityRepository) ReplaceWeekly(ctx context.Context, availability *model.WeeklyAvailability) error {
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM weekly_availability WHERE tutor_id = $1`, availability.TutorID); err != nil {
			return fmt.Errorf("delete weekly availability: %w", err)
		}

		batch := &pgx.Batch{}
		for day, ranges := range availability.Days {
			for _, rng := range ranges {
				batch.Queue(`
					INSERT INTO weekly_availability (tutor_id, weekday, start_hour, end_hour)
					VALUES ($1, $2, $3, $4)`,
					availability.TutorID, timeslot.ISOWeekday(day), rng.StartHour, rng.EndHour)
			}
		}
		if batch.Len() == 0 {
			return nil
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert weekly availability: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to replace weekly availability",
			zap.String("tutor_id", availability.TutorID),
			zap.Error(err))
		return err
	}

	r.logger.Info("Weekly availability replaced", zap.String("tutor_id", availability.TutorID))
	return nil
}
