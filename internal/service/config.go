package service

import (
	"strings"
	"time"
)

// ConflictMode — способ сравнения кандидата с уже занятыми слотами
type ConflictMode string

const (
	// ConflictModeOverlap отклоняет любое пересечение полуинтервалов
	ConflictModeOverlap ConflictMode = "overlap"
	// ConflictModeExact отклоняет только совпадение начала (старое поведение)
	ConflictModeExact ConflictMode = "exact"
)

// BookingConfig собирается один раз при старте и передаётся в конструкторы
type BookingConfig struct {
	ConflictMode      ConflictMode
	BaseURL           string
	FirstHour         int // первый час редактируемой сетки
	LastHour          int // последний час, включительно
	OperatorProfileID string
	Now               func() time.Time
}

// DefaultBookingConfig — сетка 5:00–23:00, проверка пересечений
func DefaultBookingConfig() BookingConfig {
	return BookingConfig{
		ConflictMode: ConflictModeOverlap,
		FirstHour:    5,
		LastHour:     23,
		Now:          time.Now,
	}
}

func (c BookingConfig) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

func (c BookingConfig) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func (c BookingConfig) withDefaults() BookingConfig {
	def := DefaultBookingConfig()
	if c.ConflictMode == "" {
		c.ConflictMode = def.ConflictMode
	}
	if c.FirstHour == 0 && c.LastHour == 0 {
		c.FirstHour, c.LastHour = def.FirstHour, def.LastHour
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	return c
}
