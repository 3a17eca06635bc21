// Package notify доставляет события о платежах и бронированиях во внешние каналы:
// админский чат и очередь, из которой письма отправляет отдельная подсистема.
package notify

import "time"

type Kind string

const (
	KindPaymentOpened    Kind = "payment.opened"
	KindPaymentFailed    Kind = "payment.failed"
	KindLateSuccess      Kind = "payment.late_success"
	KindAnomaly          Kind = "payment.anomaly"
	KindBookingConfirmed Kind = "booking.confirmed"
)

// Event событие для каналов уведомлений. Секретные коды сюда не попадают.
type Event struct {
	Kind       Kind           `json:"kind"`
	Text       string         `json:"text"`
	Email      string         `json:"email,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
