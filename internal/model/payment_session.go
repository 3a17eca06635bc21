package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFail    PaymentStatus = "FAIL"
	PaymentStatusExpired PaymentStatus = "EXPIRED" // PENDING с истёкшим due date
)

// IsTerminal возвращает true для статусов, которые больше не меняются
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFail
}

// PaymentSession попытка оплатить слот через эквайринг.
// ID одновременно служит OrderId на стороне шлюза.
type PaymentSession struct {
	ID           uuid.UUID     `json:"id"`
	SlotID       int64         `json:"slot_id"`
	Category     string        `json:"category"`
	PayerEmail   string        `json:"payer_email"`
	Amount       int64         `json:"amount"` // в копейках
	DiscountCode *string       `json:"discount_code"`
	Status       PaymentStatus `json:"status"`
	DueDate      time.Time     `json:"due_date"`
	SuccessCode  string        `json:"-"`
	FailCode     string        `json:"-"`
	GatewayID    *string       `json:"-"`
	PaymentURL   *string       `json:"payment_url"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsOverdue показывает, прошёл ли due date
func (p *PaymentSession) IsOverdue(now time.Time) bool {
	return now.After(p.DueDate)
}

// EffectiveStatus возвращает статус с учётом ленивого истечения:
// PENDING после due date отдаётся как EXPIRED без записи в базу.
func (p *PaymentSession) EffectiveStatus(now time.Time) PaymentStatus {
	if p.Status == PaymentStatusPending && p.IsOverdue(now) {
		return PaymentStatusExpired
	}
	return p.Status
}

// IsLive показывает, блокирует ли сессия слот: она не завершена и не просрочена
func (p *PaymentSession) IsLive(now time.Time) bool {
	return p.EffectiveStatus(now) == PaymentStatusPending
}
