package notify

import (
	"fmt"
	"strconv"
	"strings"
)

const callbackPrefix = "rsv"

// CallbackAction — действие inline-кнопки под уведомлением
type CallbackAction string

const (
	CallbackRate   CallbackAction = "rate"
	CallbackCancel CallbackAction = "cancel"
)

// Callback — разобранные данные кнопки "rsv:<action>:<id>[:<stars>]"
type Callback struct {
	Action        CallbackAction
	ReservationID int64
	Stars         int
}

// RateCallback кодирует оценку занятия
func RateCallback(reservationID int64, stars int) string {
	return fmt.Sprintf("%s:%s:%d:%d", callbackPrefix, CallbackRate, reservationID, stars)
}

// CancelCallback кодирует отмену занятия
func CancelCallback(reservationID int64) string {
	return fmt.Sprintf("%s:%s:%d", callbackPrefix, CallbackCancel, reservationID)
}

// IsReservationCallback проверяет префикс, не разбирая данные
func IsReservationCallback(data string) bool {
	return strings.HasPrefix(data, callbackPrefix+":")
}

// ParseCallback разбирает данные кнопки
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 3 || parts[0] != callbackPrefix {
		return Callback{}, fmt.Errorf("invalid callback data format: %q", data)
	}

	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return Callback{}, fmt.Errorf("invalid reservation id in callback: %q", data)
	}

	cb := Callback{Action: CallbackAction(parts[1]), ReservationID: id}
	switch cb.Action {
	case CallbackCancel:
		if len(parts) != 3 {
			return Callback{}, fmt.Errorf("invalid cancel callback: %q", data)
		}
	case CallbackRate:
		if len(parts) != 4 {
			return Callback{}, fmt.Errorf("invalid rate callback: %q", data)
		}
		if cb.Stars, err = strconv.Atoi(parts[3]); err != nil || cb.Stars < 1 || cb.Stars > 5 {
			return Callback{}, fmt.Errorf("invalid rating in callback: %q", data)
		}
	default:
		return Callback{}, fmt.Errorf("unknown callback action: %q", parts[1])
	}

	return cb, nil
}
