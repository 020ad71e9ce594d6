// Package timeslot переводит введённые человеком даты и время в абсолютные
// моменты и считает границы недель. Все моменты — в Reference (UTC).
package timeslot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Reference — опорная зона для всех сохраняемых моментов
var Reference = time.UTC

const dateLayout = "2006-01-02"

var (
	ErrInvalidTimeFormat  = errors.New("invalid time format")
	ErrInvalidRangeFormat = errors.New("invalid time range format")
	ErrInvalidDate        = errors.New("invalid calendar date")
)

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])?$`)

// CalendarDate — календарная дата без времени суток
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseCalendarDate разбирает дату в формате YYYY-MM-DD
func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), Reference)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf возвращает календарную дату момента в опорной зоне
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.In(Reference).Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// Time возвращает полночь даты в опорной зоне
func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, Reference)
}

// AddDays сдвигает дату на n календарных дней
func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d CalendarDate) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// ISOWeekday — номер дня недели, понедельник = 0
func (d CalendarDate) ISOWeekday() int {
	return ISOWeekday(d.Weekday())
}

func (d CalendarDate) Before(o CalendarDate) bool {
	return d.Time().Before(o.Time())
}

func (d CalendarDate) After(o CalendarDate) bool {
	return d.Time().After(o.Time())
}

func (d CalendarDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// At возвращает момент даты в заданное время суток
func (d CalendarDate) At(hour, minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, Reference)
}

// ISOWeekday переводит time.Weekday (воскресенье = 0) в ISO (понедельник = 0)
func ISOWeekday(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// FromISOWeekday — обратное преобразование к time.Weekday
func FromISOWeekday(i int) time.Weekday {
	return time.Weekday((i + 1) % 7)
}

// ParseClock разбирает "HH:mm AM/PM" или 24-часовое "HH:mm"
func ParseClock(s string) (hour, minute int, err error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	if m[3] == "" {
		if hour > 23 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
		return hour, minute, nil
	}

	if hour < 1 || hour > 12 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	// 12 AM -> 0, 12 PM остаётся 12
	switch strings.ToUpper(m[3]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	}
	return hour, minute, nil
}

// MergeDateAndTime ставит время суток на дату в опорной зоне
func MergeDateAndTime(date CalendarDate, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return date.At(hour, minute), nil
}

// SplitTimeRange делит "HH:mm - HH:mm" на начало и конец
func SplitTimeRange(s string) (start, end string, err error) {
	parts := strings.SplitN(s, " - ", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRangeFormat, s)
	}

	start, end = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if start == "" || end == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRangeFormat, s)
	}
	return start, end, nil
}

// ParseSlot разбирает дату и диапазон в пару моментов
func ParseSlot(date, timeRange string) (beginsAt, endsAt time.Time, err error) {
	d, err := ParseCalendarDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	startStr, endStr, err := SplitTimeRange(timeRange)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if beginsAt, err = MergeDateAndTime(d, startStr); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if endsAt, err = MergeDateAndTime(d, endStr); err != nil {
		return time.Time{}, time.Time{}, err
	}

	if !beginsAt.Before(endsAt) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end must be after start in %q", ErrInvalidRangeFormat, timeRange)
	}
	return beginsAt, endsAt, nil
}
