package timeslot

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) CalendarDate {
	t.Helper()
	d, err := ParseCalendarDate(s)
	require.NoError(t, err)
	return d
}

func TestMergeDateAndTime_TwelveHourEdges(t *testing.T) {
	date := mustDate(t, "2025-03-10")

	tests := []struct {
		clock        string
		hour, minute int
	}{
		{"12:00 AM", 0, 0},
		{"12:00 PM", 12, 0},
		{"12:30 am", 0, 30},
		{"01:15 PM", 13, 15},
		{"11:59 PM", 23, 59},
		{"10:00AM", 10, 0},
		{"09:45", 9, 45},
		{"23:05", 23, 5},
	}

	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			got, err := MergeDateAndTime(date, tt.clock)
			require.NoError(t, err)
			assert.Equal(t, tt.hour, got.Hour())
			assert.Equal(t, tt.minute, got.Minute())
			assert.Equal(t, time.UTC, got.Location())
			assert.Equal(t, 10, got.Day())
		})
	}
}

func TestMergeDateAndTime_RoundTrip(t *testing.T) {
	date := mustDate(t, "2024-02-29")

	for h := 1; h <= 12; h++ {
		for _, minute := range []int{0, 7, 30, 59} {
			for _, suffix := range []string{"AM", "PM"} {
				clock := fmt.Sprintf("%02d:%02d %s", h, minute, suffix)
				got, err := MergeDateAndTime(date, clock)
				require.NoError(t, err, clock)

				want := h % 12
				if suffix == "PM" {
					want += 12
				}
				assert.Equal(t, want, got.Hour(), clock)
				assert.Equal(t, minute, got.Minute(), clock)
				assert.Equal(t, date, DateOf(got), clock)
			}
		}
	}
}

func TestMergeDateAndTime_Invalid(t *testing.T) {
	date := mustDate(t, "2025-03-10")

	for _, clock := range []string{"", "10", "13:00 PM", "00:30 AM", "10:60 AM", "24:00", "ten o'clock", "10:00 XM"} {
		_, err := MergeDateAndTime(date, clock)
		assert.ErrorIs(t, err, ErrInvalidTimeFormat, clock)
	}
}

func TestSplitTimeRange(t *testing.T) {
	start, end, err := SplitTimeRange("10:00 AM - 10:30 AM")
	require.NoError(t, err)
	assert.Equal(t, "10:00 AM", start)
	assert.Equal(t, "10:30 AM", end)

	for _, bad := range []string{"10:00 AM-10:30 AM", "10:00 AM", " - 10:30 AM", ""} {
		_, _, err := SplitTimeRange(bad)
		assert.ErrorIs(t, err, ErrInvalidRangeFormat, bad)
	}
}

func TestParseSlot(t *testing.T) {
	begins, ends, err := ParseSlot("2025-03-10", "10:00 AM - 10:30 AM")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), begins)
	assert.Equal(t, 30*time.Minute, ends.Sub(begins))

	_, _, err = ParseSlot("2025-03-10", "11:00 AM - 10:30 AM")
	assert.ErrorIs(t, err, ErrInvalidRangeFormat)

	_, _, err = ParseSlot("10/03/2025", "10:00 AM - 10:30 AM")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestMondayOf(t *testing.T) {
	tests := map[string]string{
		"2025-03-10": "2025-03-10", // понедельник
		"2025-03-12": "2025-03-10",
		"2025-03-16": "2025-03-10", // воскресенье
		"2025-03-17": "2025-03-17",
		"2025-01-01": "2024-12-30", // через границу года
	}

	for in, want := range tests {
		assert.Equal(t, want, MondayOf(mustDate(t, in)).String(), in)
	}
}

func TestISOWeekdayMapping(t *testing.T) {
	assert.Equal(t, 0, ISOWeekday(time.Monday))
	assert.Equal(t, 6, ISOWeekday(time.Sunday))

	for d := time.Sunday; d <= time.Saturday; d++ {
		assert.Equal(t, d, FromISOWeekday(ISOWeekday(d)))
	}
}

func TestCurrentWeekRange(t *testing.T) {
	// Воскресенье поздно вечером: неделя всё ещё начинается в понедельник 10-го
	ref := time.Date(2025, 3, 16, 23, 59, 0, 0, time.UTC)
	wr := CurrentWeekRange(ref)

	assert.Equal(t, WeekRange{
		StartOfWeek:     "2025-03-10",
		EndOfWeek:       "2025-03-16",
		StartOfMonth:    "2025-03-01",
		EndOfMonth:      "2025-03-31",
		StartOfQuarter:  "2025-01-01",
		EndOfQuarter:    "2025-03-31",
		StartOfSemester: "2025-01-01",
		EndOfSemester:   "2025-06-30",
	}, wr)

	wr = CurrentWeekRange(time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-11-18", wr.StartOfWeek)
	assert.Equal(t, "2024-11-24", wr.EndOfWeek)
	assert.Equal(t, "2024-10-01", wr.StartOfQuarter)
	assert.Equal(t, "2024-12-31", wr.EndOfQuarter)
	assert.Equal(t, "2024-07-01", wr.StartOfSemester)
	assert.Equal(t, "2024-12-31", wr.EndOfSemester)
}

func TestCurrentWeekRange_UsesReferenceZone(t *testing.T) {
	// 01:00 во вторник по UTC+3 — это ещё понедельник по UTC
	loc := time.FixedZone("UTC+3", 3*60*60)
	ref := time.Date(2025, 3, 11, 1, 0, 0, 0, loc)

	wr := CurrentWeekRange(ref)
	assert.Equal(t, "2025-03-10", wr.StartOfWeek)
}

func TestSlotKey(t *testing.T) {
	assert.Equal(t, "Monday-10", SlotKey(time.Monday, 10))
	assert.Equal(t, "Sunday-5", SlotKeyOf(time.Date(2025, 3, 16, 5, 30, 0, 0, time.UTC)))

	d, err := ParseWeekday("wednesday")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, d)

	_, err = ParseWeekday("Funday")
	assert.Error(t, err)
}
