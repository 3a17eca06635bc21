package service

import (
	"time"

	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/shopspring/decimal"
)

// IsEligible проверяет, можно ли применить промокод (активен, не истёк, не израсходован)
func IsEligible(code *model.DiscountCode, now time.Time) bool {
	if code == nil || !code.IsActive {
		return false
	}

	if code.ExpiresAt != nil && !code.ExpiresAt.After(now) {
		return false
	}

	if code.MaxUses != nil && code.Uses >= *code.MaxUses {
		return false
	}

	return true
}

// ApplyDiscount считает сумму к оплате в копейках со скидкой в процентах.
// Округление до копейки, результат не меньше minAmount.
func ApplyDiscount(price int64, percent int, minAmount int64) int64 {
	percent = max(0, min(percent, 100))

	amount := decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(int64(100 - percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	return max(amount, minAmount)
}
