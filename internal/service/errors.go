package service

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/classroom_scheduler/internal/repository"
	"github.com/Freeeeeet/classroom_scheduler/internal/timeslot"
)

var (
	ErrInvalidTimeFormat  = timeslot.ErrInvalidTimeFormat
	ErrInvalidRangeFormat = timeslot.ErrInvalidRangeFormat
	ErrInvalidDate        = timeslot.ErrInvalidDate

	ErrInvalidDuration         = errors.New("invalid duration")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrUnknownCategory         = errors.New("unknown category")
	ErrOverlappingAvailability = errors.New("availability ranges overlap")
	ErrSlotUnavailable         = errors.New("this tutor is already booked at that time")
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrAlreadyTerminal         = errors.New("reservation is already in a terminal state")
	ErrInvalidTransition       = errors.New("invalid reservation status transition")
	ErrMalformedReference      = errors.New("malformed external reference")
	ErrPersistence             = errors.New("persistence failure")
	ErrProfileNotFound         = errors.New("profile not found")
	ErrInvalidLinkCode         = errors.New("link code is unknown, used or expired")
)

// ErrorKind — класс ошибки, видимый вызывающему
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindUnavailable  ErrorKind = "unavailable"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInternal     ErrorKind = "internal"
)

// Kind классифицирует ошибку: неверный ввод, занятый слот или сбой на нашей стороне
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, repository.ErrDuplicateSlot):
		return KindUnavailable
	case errors.Is(err, ErrReservationNotFound), errors.Is(err, ErrProfileNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyTerminal), errors.Is(err, ErrInvalidTransition):
		return KindConflict
	case errors.Is(err, ErrInvalidTimeFormat),
		errors.Is(err, ErrInvalidRangeFormat),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnknownCategory),
		errors.Is(err, ErrOverlappingAvailability),
		errors.Is(err, ErrMalformedReference),
		errors.Is(err, ErrInvalidLinkCode):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// persistence оборачивает сбой хранилища, сохраняя исходную ошибку
func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
