package model

import (
	"slices"
	"time"
)

// Slot продаваемое окно в календаре сотрудника
type Slot struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"owner_id"` // календарь сотрудника
	StartTime  time.Time `json:"start_time"`
	Categories []string  `json:"categories"` // категории встреч, для которых слот доступен
	BookingID  *int64    `json:"booking_id"` // nil = слот свободен; после привязки не сбрасывается
	CreatedAt  time.Time `json:"created_at"`
}

// IsBound показывает, привязано ли к слоту бронирование
func (s *Slot) IsBound() bool {
	return s.BookingID != nil
}

// Allows проверяет, доступен ли слот для категории
func (s *Slot) Allows(category string) bool {
	return slices.Contains(s.Categories, category)
}

// IsPast возвращает true, если слот уже начался
func (s *Slot) IsPast(now time.Time) bool {
	return !s.StartTime.After(now)
}
