package controller

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
)

// StatusDisplay — emoji и подпись статуса занятия
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetStatusDisplay возвращает emoji и текст для статуса занятия
func GetStatusDisplay(status model.ReservationStatus) StatusDisplay {
	displays := map[model.ReservationStatus]StatusDisplay{
		model.ReservationStatusRequested:    {"⏳", "Ожидает подтверждения"},
		model.ReservationStatusCreated:      {"💳", "Ожидает оплаты"},
		model.ReservationStatusNext:         {"📅", "Запланировано"},
		model.ReservationStatusNotConfirmed: {"⭐", "Ждёт оценки"},
		model.ReservationStatusConfirmed:    {"✅", "Проведено"},
		model.ReservationStatusCancelled:    {"❌", "Отменено"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Неизвестно"}
}

// FormatTimeRange форматирует интервал занятия
func FormatTimeRange(start, end time.Time) string {
	return fmt.Sprintf("%s %s-%s", start.Format("02.01.2006"), start.Format("15:04"), end.Format("15:04"))
}

// FormatDuration форматирует длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

// FormatReservation — одна строка списка занятий
func FormatReservation(r *model.Reservation) string {
	display := GetStatusDisplay(r.Status)
	line := fmt.Sprintf("%s #%d %s (%s) — %s",
		display.Emoji, r.ID, FormatTimeRange(r.BeginsAt, r.EndsAt), FormatDuration(r.DurationMinutes), display.Text)
	if r.Title != "" {
		line += "\n    " + r.Title
	}
	return line
}

// FormatWeek — список занятий недели или сообщение о пустой неделе
func FormatWeek(reservations []*model.Reservation) string {
	if len(reservations) == 0 {
		return "📭 На этой неделе занятий нет"
	}

	var sb strings.Builder
	sb.WriteString("🗓 Занятия на неделе:\n\n")
	for _, r := range reservations {
		sb.WriteString(FormatReservation(r))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
