package timeslot

import (
	"fmt"
	"strings"
	"time"
)

// WeekRange — границы периодов вокруг опорного момента, в виде дат YYYY-MM-DD
type WeekRange struct {
	StartOfWeek     string `json:"start_of_week"`
	EndOfWeek       string `json:"end_of_week"`
	StartOfMonth    string `json:"start_of_month"`
	EndOfMonth      string `json:"end_of_month"`
	StartOfQuarter  string `json:"start_of_quarter"`
	EndOfQuarter    string `json:"end_of_quarter"`
	StartOfSemester string `json:"start_of_semester"`
	EndOfSemester   string `json:"end_of_semester"`
}

// MondayOf возвращает понедельник недели, содержащей дату
func MondayOf(d CalendarDate) CalendarDate {
	return d.AddDays(-d.ISOWeekday())
}

// SundayOf возвращает воскресенье той же недели
func SundayOf(d CalendarDate) CalendarDate {
	return MondayOf(d).AddDays(6)
}

// CurrentWeekRange считает границы календарно, а не по моментам,
// чтобы полночь не уезжала при смене зоны.
func CurrentWeekRange(ref time.Time) WeekRange {
	today := DateOf(ref)

	monthStart := CalendarDate{Year: today.Year, Month: today.Month, Day: 1}
	monthEnd := lastDayOfMonth(today.Year, today.Month)

	quarterFirst := time.Month((int(today.Month)-1)/3*3 + 1)
	quarterStart := CalendarDate{Year: today.Year, Month: quarterFirst, Day: 1}
	quarterEnd := lastDayOfMonth(today.Year, quarterFirst+2)

	semesterFirst := time.January
	if today.Month > time.June {
		semesterFirst = time.July
	}
	semesterStart := CalendarDate{Year: today.Year, Month: semesterFirst, Day: 1}
	semesterEnd := lastDayOfMonth(today.Year, semesterFirst+5)

	return WeekRange{
		StartOfWeek:     MondayOf(today).String(),
		EndOfWeek:       SundayOf(today).String(),
		StartOfMonth:    monthStart.String(),
		EndOfMonth:      monthEnd.String(),
		StartOfQuarter:  quarterStart.String(),
		EndOfQuarter:    quarterEnd.String(),
		StartOfSemester: semesterStart.String(),
		EndOfSemester:   semesterEnd.String(),
	}
}

func lastDayOfMonth(year int, month time.Month) CalendarDate {
	// день 0 следующего месяца — последний день текущего
	return DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, Reference))
}

// DayName — локале-независимое длинное имя дня ("Monday")
func DayName(w time.Weekday) string {
	return w.String()
}

// SlotKey строит ключ слота "{Monday}-{hour}"
func SlotKey(day time.Weekday, hour int) string {
	return fmt.Sprintf("%s-%d", DayName(day), hour)
}

// SlotKeyOf строит ключ слота по моменту в опорной зоне
func SlotKeyOf(t time.Time) string {
	t = t.In(Reference)
	return SlotKey(t.Weekday(), t.Hour())
}

// ParseWeekday разбирает длинное английское имя дня без учёта регистра
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday: %q", name)
}
