package model

import (
	"time"

	"github.com/google/uuid"
)

// Booking проданный слот. Существование записи и есть доказательство продажи.
type Booking struct {
	ID               int64     `json:"id"`
	SlotID           int64     `json:"slot_id"`
	Category         string    `json:"category"`
	PayerEmail       string    `json:"payer_email"`
	PaymentSessionID uuid.UUID `json:"payment_session_id"`
	CreatedAt        time.Time `json:"created_at"`
}
