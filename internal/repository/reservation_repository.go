package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const reservationColumns = `id, tutor_id, student_id, category_id, begins_at, ends_at, duration_minutes,
	title, request_description, cost_cents, status, confirmed, payment_id, created_at, updated_at`

// ConflictQuerier — чтения, нужные проверке конфликтов слотов
type ConflictQuerier interface {
	// FindHoldingByStart ищет занятия с тем же началом; excludeID == 0 — без исключений
	FindHoldingByStart(ctx context.Context, tutorID string, beginsAt time.Time, excludeID int64) ([]*model.Reservation, error)
	// FindHoldingOverlapping ищет занятия, пересекающие [beginsAt, endsAt)
	FindHoldingOverlapping(ctx context.Context, tutorID string, beginsAt, endsAt time.Time, excludeID int64) ([]*model.Reservation, error)
}

// ReservationTx — операции внутри транзакции, удерживающей блокировку преподавателя
type ReservationTx interface {
	ConflictQuerier
	Insert(ctx context.Context, reservation *model.Reservation) error
	GetByID(ctx context.Context, id int64) (*model.Reservation, error)
	UpdateSlot(ctx context.Context, id int64, beginsAt, endsAt time.Time, durationMinutes int) error
}

// ReservationRepository хранит занятия в таблице class_rooms
type ReservationRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewReservationRepository(pool *pgxpool.Pool, logger *zap.Logger) *ReservationRepository {
	return &ReservationRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// WithTutorLock выполняет fn в транзакции под advisory-блокировкой преподавателя.
// Нарушение уникального индекса слотов превращается в ErrDuplicateSlot.
func (r *ReservationRepository) WithTutorLock(ctx context.Context, tutorID string, fn func(ctx context.Context, tx ReservationTx) error) error {
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, tutorID); err != nil {
			return fmt.Errorf("acquire tutor lock: %w", err)
		}
		return fn(ctx, &reservationTx{q: tx})
	})
	if base.IsUniqueViolation(err) {
		r.logger.Warn("Unique slot index rejected insert", zap.String("tutor_id", tutorID))
		return fmt.Errorf("%w: %v", ErrDuplicateSlot, err)
	}
	return err
}

// FindHoldingByStart выполняется без блокировки: годится для предварительной проверки
func (r *ReservationRepository) FindHoldingByStart(ctx context.Context, tutorID string, beginsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	return findHoldingByStart(ctx, r.Pool(), tutorID, beginsAt, excludeID)
}

func (r *ReservationRepository) FindHoldingOverlapping(ctx context.Context, tutorID string, beginsAt, endsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	return findHoldingOverlapping(ctx, r.Pool(), tutorID, beginsAt, endsAt, excludeID)
}

// GetByID получает занятие по ID
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	return getReservation(ctx, r.Pool(), id, false)
}

// ListByTutor возвращает занятия преподавателя с началом в [from, to)
func (r *ReservationRepository) ListByTutor(ctx context.Context, tutorID string, from, to time.Time, statuses []model.ReservationStatus) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM class_rooms
		WHERE tutor_id = $1 AND begins_at >= $2 AND begins_at < $3 AND status = ANY($4)
		ORDER BY begins_at`

	rows, err := r.Pool().Query(ctx, query, tutorID, from, to, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("list reservations by tutor: %w", err)
	}
	return collectReservations(rows)
}

// ListByPaymentID возвращает все занятия пакета
func (r *ReservationRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM class_rooms
		WHERE payment_id = $1
		ORDER BY begins_at`

	rows, err := r.Pool().Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list reservations by payment: %w", err)
	}
	return collectReservations(rows)
}

// ListExpired возвращает кандидатов для sweep: NEXT с ends_at < now
func (r *ReservationRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM class_rooms
		WHERE status = 'NEXT' AND ends_at < $1
		ORDER BY ends_at`

	rows, err := r.Pool().Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	return collectReservations(rows)
}

// ExpireNext условно переводит NEXT -> NOTCONFIRMED.
// Возвращает nil, если строку уже изменил кто-то другой.
func (r *ReservationRepository) ExpireNext(ctx context.Context, id int64, now time.Time) (*model.Reservation, error) {
	query := `
		UPDATE class_rooms
		SET status = 'NOTCONFIRMED', updated_at = now()
		WHERE id = $1 AND status = 'NEXT' AND ends_at < $2
		RETURNING ` + reservationColumns

	reservation, err := scanReservation(r.Pool().QueryRow(ctx, query, id, now))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("expire reservation: %w", err)
	}
	return reservation, nil
}

// TransitionStatus условно меняет статус, если текущий входит в from.
// Возвращает nil, если перехода не было.
func (r *ReservationRepository) TransitionStatus(ctx context.Context, id int64, from []model.ReservationStatus, to model.ReservationStatus) (*model.Reservation, error) {
	reservation, err := transitionStatus(ctx, r.Pool(), id, from, to)
	if err != nil {
		return nil, err
	}
	if reservation != nil {
		r.logger.Info("Reservation status changed",
			zap.Int64("reservation_id", id),
			zap.String("status", to.String()))
	}
	return reservation, nil
}

// TransitionByPayment переводит все занятия пакета одной командой.
// Возвращаются только реально переведённые строки.
func (r *ReservationRepository) TransitionByPayment(ctx context.Context, paymentID, studentID, tutorID string, from []model.ReservationStatus, to model.ReservationStatus) ([]*model.Reservation, error) {
	query := `
		UPDATE class_rooms
		SET status = $5, updated_at = now()
		WHERE payment_id = $1 AND student_id = $2 AND tutor_id = $3 AND status = ANY($4)
		RETURNING ` + reservationColumns

	rows, err := r.Pool().Query(ctx, query, paymentID, studentID, tutorID, statusStrings(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("transition reservations by payment: %w", err)
	}
	return collectReservations(rows)
}

// ConfirmWithReview переводит занятие в CONFIRMED и сохраняет отзыв в одной транзакции
func (r *ReservationRepository) ConfirmWithReview(ctx context.Context, id int64, from []model.ReservationStatus, review *model.Review) (*model.Reservation, error) {
	var confirmed *model.Reservation

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		reservation, err := transitionStatus(ctx, tx, id, from, model.ReservationStatusConfirmed)
		if err != nil || reservation == nil {
			return err
		}

		review.ReservationID = id
		err = tx.QueryRow(ctx, `
			INSERT INTO class_room_reviews (class_room_id, author_id, rating, comment)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			review.ReservationID, review.AuthorID, review.Rating, review.Comment,
		).Scan(&review.ID, &review.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}

		confirmed = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

type reservationTx struct {
	q base.Querier
}

func (t *reservationTx) FindHoldingByStart(ctx context.Context, tutorID string, beginsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	return findHoldingByStart(ctx, t.q, tutorID, beginsAt, excludeID)
}

func (t *reservationTx) FindHoldingOverlapping(ctx context.Context, tutorID string, beginsAt, endsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	return findHoldingOverlapping(ctx, t.q, tutorID, beginsAt, endsAt, excludeID)
}

// Insert создаёт занятие; ID и временные метки заполняются из БД
func (t *reservationTx) Insert(ctx context.Context, reservation *model.Reservation) error {
	query := `
		INSERT INTO class_rooms (tutor_id, student_id, category_id, begins_at, ends_at, duration_minutes,
			title, request_description, cost_cents, status, confirmed, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := t.q.QueryRow(
		ctx, query,
		reservation.TutorID,
		reservation.StudentID,
		reservation.CategoryID,
		reservation.BeginsAt,
		reservation.EndsAt,
		reservation.DurationMinutes,
		reservation.Title,
		reservation.RequestDescription,
		reservation.CostCents,
		string(reservation.Status),
		reservation.Confirmed,
		reservation.PaymentID,
	).Scan(&reservation.ID, &reservation.CreatedAt, &reservation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetByID внутри транзакции берёт строку FOR UPDATE
func (t *reservationTx) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	return getReservation(ctx, t.q, id, true)
}

func (t *reservationTx) UpdateSlot(ctx context.Context, id int64, beginsAt, endsAt time.Time, durationMinutes int) error {
	affected, err := base.ExecAffected(ctx, t.q, `
		UPDATE class_rooms
		SET begins_at = $2, ends_at = $3, duration_minutes = $4, updated_at = now()
		WHERE id = $1`,
		id, beginsAt, endsAt, durationMinutes)
	if err != nil {
		return fmt.Errorf("update reservation slot: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update reservation slot: reservation %d not found", id)
	}
	return nil
}

func findHoldingByStart(ctx context.Context, q base.Querier, tutorID string, beginsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM class_rooms
		WHERE tutor_id = $1 AND begins_at = $2 AND status = ANY($3) AND id <> $4`

	rows, err := q.Query(ctx, query, tutorID, beginsAt, statusStrings(model.HoldingStatuses), excludeID)
	if err != nil {
		return nil, fmt.Errorf("find reservations by start: %w", err)
	}
	return collectReservations(rows)
}

func findHoldingOverlapping(ctx context.Context, q base.Querier, tutorID string, beginsAt, endsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM class_rooms
		WHERE tutor_id = $1 AND begins_at < $3 AND $2 < ends_at AND status = ANY($4) AND id <> $5
		ORDER BY begins_at`

	rows, err := q.Query(ctx, query, tutorID, beginsAt, endsAt, statusStrings(model.HoldingStatuses), excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping reservations: %w", err)
	}
	return collectReservations(rows)
}

func getReservation(ctx context.Context, q base.Querier, id int64, forUpdate bool) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM class_rooms WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	reservation, err := scanReservation(q.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation by id: %w", err)
	}
	return reservation, nil
}

func transitionStatus(ctx context.Context, q base.Querier, id int64, from []model.ReservationStatus, to model.ReservationStatus) (*model.Reservation, error) {
	query := `
		UPDATE class_rooms
		SET status = $3, confirmed = confirmed OR $3 = 'CONFIRMED', updated_at = now()
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + reservationColumns

	reservation, err := scanReservation(q.QueryRow(ctx, query, id, statusStrings(from), string(to)))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("transition reservation status: %w", err)
	}
	return reservation, nil
}

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var reservation model.Reservation
	err := row.Scan(
		&reservation.ID,
		&reservation.TutorID,
		&reservation.StudentID,
		&reservation.CategoryID,
		&reservation.BeginsAt,
		&reservation.EndsAt,
		&reservation.DurationMinutes,
		&reservation.Title,
		&reservation.RequestDescription,
		&reservation.CostCents,
		&reservation.Status,
		&reservation.Confirmed,
		&reservation.PaymentID,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	reservation.BeginsAt = reservation.BeginsAt.UTC()
	reservation.EndsAt = reservation.EndsAt.UTC()
	return &reservation, nil
}

func collectReservations(rows pgx.Rows) ([]*model.Reservation, error) {
	defer rows.Close()

	var reservations []*model.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return reservations, nil
}

func statusStrings(statuses []model.ReservationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
