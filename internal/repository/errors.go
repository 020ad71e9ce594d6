package repository

import "errors"

// ErrDuplicateSlot — вставка упёрлась в уникальный индекс занятых слотов преподавателя
var ErrDuplicateSlot = errors.New("tutor slot already held")
