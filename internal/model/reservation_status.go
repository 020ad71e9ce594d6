package model

import (
	"fmt"
	"strings"
)

// ReservationStatus — статус занятия (class room) в жизненном цикле
type ReservationStatus string

const (
	ReservationStatusRequested    ReservationStatus = "REQUESTED"    // Студент запросил слот напрямую
	ReservationStatusCreated      ReservationStatus = "CREATED"      // Создано под платёжную преференцию пакета
	ReservationStatusNext         ReservationStatus = "NEXT"         // Оплачено, занятие предстоит
	ReservationStatusConfirmed    ReservationStatus = "CONFIRMED"    // Проведено и подтверждено отзывом
	ReservationStatusNotConfirmed ReservationStatus = "NOTCONFIRMED" // Время прошло, подтверждения нет
	ReservationStatusCancelled    ReservationStatus = "CANCELLED"    // Отменено
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusRequested:    {ReservationStatusNext, ReservationStatusCancelled},
	ReservationStatusCreated:      {ReservationStatusNext, ReservationStatusCancelled},
	ReservationStatusNext:         {ReservationStatusNotConfirmed, ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusNotConfirmed: {ReservationStatusConfirmed},
	ReservationStatusConfirmed:    {},
	ReservationStatusCancelled:    {},
}

// HoldingStatuses — статусы, при которых занятие удерживает слот преподавателя
var HoldingStatuses = []ReservationStatus{
	ReservationStatusRequested,
	ReservationStatusCreated,
	ReservationStatusNext,
	ReservationStatusConfirmed,
}

// IsValid проверяет, что статус входит в перечисление
func (s ReservationStatus) IsValid() bool {
	_, ok := reservationTransitions[s]
	return ok
}

// CanTransitionTo проверяет допустимость перехода
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, t := range reservationTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal — CANCELLED и CONFIRMED дальше не меняются
func (s ReservationStatus) IsTerminal() bool {
	allowed, ok := reservationTransitions[s]
	return !ok || len(allowed) == 0
}

// HoldsSlot сообщает, занимает ли занятие слот
func (s ReservationStatus) HoldsSlot() bool {
	for _, h := range HoldingStatuses {
		if h == s {
			return true
		}
	}
	return false
}

func (s ReservationStatus) String() string {
	return string(s)
}

// ParseReservationStatus приводит сырую строку (в любом регистре) к статусу
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	if normalized == "CANCELED" {
		normalized = string(ReservationStatusCancelled)
	}

	status := ReservationStatus(normalized)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid reservation status: %q", raw)
	}
	return status, nil
}
