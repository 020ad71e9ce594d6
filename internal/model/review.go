package model

import (
	"errors"
	"time"
)

// Review — отзыв, которым закрывается занятие
type Review struct {
	ID            int64     `json:"id"`
	ReservationID int64     `json:"reservation_id"`
	AuthorID      string    `json:"author_id"`
	Rating        int       `json:"rating"` // 1..5
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *Review) Validate() error {
	if r.AuthorID == "" {
		return errors.New("review author is required")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}
