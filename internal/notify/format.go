package notify

import (
	"fmt"
	"time"
)

// FormatPrice форматирует цену из копеек в рубли
func FormatPrice(priceInCents int64) string {
	price := float64(priceInCents) / 100
	if priceInCents%100 == 0 {
		return fmt.Sprintf("%.0f ₽", price)
	}
	return fmt.Sprintf("%.2f ₽", price)
}

// FormatTime форматирует время слота для сообщений
func FormatTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}
