package model

import (
	"errors"
	"time"
)

// Reservation — занятие (class room) между преподавателем и студентом
type Reservation struct {
	ID                 int64             `json:"id"`
	TutorID            string            `json:"tutor_id"`
	StudentID          string            `json:"student_id"`
	CategoryID         int64             `json:"category_id"`
	BeginsAt           time.Time         `json:"begins_at"`
	EndsAt             time.Time         `json:"ends_at"`
	DurationMinutes    int               `json:"duration_minutes"`
	Title              string            `json:"title"`
	RequestDescription string            `json:"request_description"`
	CostCents          int64             `json:"cost_cents"` // в центах
	Status             ReservationStatus `json:"status"`
	Confirmed          bool              `json:"confirmed"`
	PaymentID          *string           `json:"payment_id"` // nil для прямого запроса
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Validate проверяет инварианты интервала занятия
func (r *Reservation) Validate() error {
	if !r.BeginsAt.Before(r.EndsAt) {
		return errors.New("begins_at must be before ends_at")
	}
	if r.DurationMinutes <= 0 {
		return errors.New("duration must be positive")
	}
	if int(r.EndsAt.Sub(r.BeginsAt)/time.Minute) != r.DurationMinutes {
		return errors.New("duration does not match the interval")
	}
	return nil
}

// Overlaps проверяет пересечение полуинтервалов [begins, ends)
func (r *Reservation) Overlaps(beginsAt, endsAt time.Time) bool {
	return r.BeginsAt.Before(endsAt) && beginsAt.Before(r.EndsAt)
}

// HasParticipant проверяет, что профиль — студент или преподаватель занятия
func (r *Reservation) HasParticipant(profileID string) bool {
	return profileID != "" && (r.StudentID == profileID || r.TutorID == profileID)
}

// Clone возвращает независимую копию
func (r *Reservation) Clone() *Reservation {
	c := *r
	if r.PaymentID != nil {
		id := *r.PaymentID
		c.PaymentID = &id
	}
	return &c
}
