package model

import "time"

// DiscountCode промокод со скидкой в процентах
type DiscountCode struct {
	ID        int64      `json:"id"`
	Value     string     `json:"value"`
	Percent   int        `json:"percent"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at"` // nil = бессрочный
	MaxUses   *int       `json:"max_uses"`   // nil = без ограничения
	Uses      int        `json:"uses"`       // успешные оплаты с этим кодом
	CreatedAt time.Time  `json:"created_at"`
}
