package model

import (
	"sort"
	"time"
)

type SlotStatus string

const (
	SlotStatusNone      SlotStatus = "NONE"
	SlotStatusAvailable SlotStatus = "AVAILABLE"
	SlotStatusReserved  SlotStatus = "RESERVED"
)

// TimeRange — окно в часах внутри дня; EndHour == nil означает один час
type TimeRange struct {
	StartHour int  `json:"start_hour"`
	EndHour   *int `json:"end_hour,omitempty"`
}

// End возвращает час окончания (не включительно)
func (r TimeRange) End() int {
	if r.EndHour == nil {
		return r.StartHour + 1
	}
	return *r.EndHour
}

// Covers проверяет, попадает ли час в окно
func (r TimeRange) Covers(hour int) bool {
	return hour >= r.StartHour && hour < r.End()
}

// WeeklyAvailability — еженедельная сетка преподавателя
type WeeklyAvailability struct {
	TutorID   string                       `json:"tutor_id"`
	Days      map[time.Weekday][]TimeRange `json:"days"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

func NewWeeklyAvailability(tutorID string) *WeeklyAvailability {
	return &WeeklyAvailability{
		TutorID: tutorID,
		Days:    make(map[time.Weekday][]TimeRange),
	}
}

// Covers проверяет, объявил ли преподаватель час доступным
func (w *WeeklyAvailability) Covers(day time.Weekday, hour int) bool {
	if w == nil {
		return false
	}
	for _, r := range w.Days[day] {
		if r.Covers(hour) {
			return true
		}
	}
	return false
}

// HourSet разворачивает окна дня в набор часов
func HourSet(ranges []TimeRange) [24]bool {
	var hours [24]bool
	for _, r := range ranges {
		for h := r.StartHour; h < r.End() && h < 24; h++ {
			if h >= 0 {
				hours[h] = true
			}
		}
	}
	return hours
}

// RangesFromHours собирает непрерывные окна из набора часов
func RangesFromHours(hours [24]bool) []TimeRange {
	var ranges []TimeRange
	for h := 0; h < 24; {
		if !hours[h] {
			h++
			continue
		}
		start := h
		for h < 24 && hours[h] {
			h++
		}
		end := h
		ranges = append(ranges, TimeRange{StartHour: start, EndHour: &end})
	}
	return ranges
}

// SortRanges сортирует окна по часу начала
func SortRanges(ranges []TimeRange) {
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].StartHour < ranges[j].StartHour
	})
}
