package acquiring

import "github.com/Freeeeeet/paybook/internal/model"

// Status статус платежа в терминах шлюза
type Status string

const (
	StatusNew             Status = "NEW"
	StatusFormShowed      Status = "FORM_SHOWED"
	StatusAuthorizing     Status = "AUTHORIZING"
	Status3DSChecking     Status = "3DS_CHECKING"
	Status3DSChecked      Status = "3DS_CHECKED"
	StatusAuthorized      Status = "AUTHORIZED"
	StatusConfirming      Status = "CONFIRMING"
	StatusConfirmed       Status = "CONFIRMED"
	StatusReversing       Status = "REVERSING"
	StatusPartialReversed Status = "PARTIAL_REVERSED"
	StatusReversed        Status = "REVERSED"
	StatusRefunding       Status = "REFUNDING"
	StatusPartialRefunded Status = "PARTIAL_REFUNDED"
	StatusRefunded        Status = "REFUNDED"
	StatusRejected        Status = "REJECTED"
	StatusAuthFail        Status = "AUTH_FAIL"
	StatusDeadlineExpired Status = "DEADLINE_EXPIRED"
	StatusCanceled        Status = "CANCELED"
)

// statusMap покрывает весь словарь шлюза.
// Значение вне таблицы считается ошибкой конфигурации.
var statusMap = map[Status]model.PaymentStatus{
	StatusNew:             model.PaymentStatusPending,
	StatusFormShowed:      model.PaymentStatusPending,
	StatusAuthorizing:     model.PaymentStatusPending,
	Status3DSChecking:     model.PaymentStatusPending,
	Status3DSChecked:      model.PaymentStatusPending,
	StatusAuthorized:      model.PaymentStatusPending,
	StatusConfirming:      model.PaymentStatusPending,
	StatusReversing:       model.PaymentStatusPending,
	StatusRefunding:       model.PaymentStatusPending,
	StatusConfirmed:       model.PaymentStatusSuccess,
	StatusPartialReversed: model.PaymentStatusFail,
	StatusReversed:        model.PaymentStatusFail,
	StatusPartialRefunded: model.PaymentStatusFail,
	StatusRefunded:        model.PaymentStatusFail,
	StatusRejected:        model.PaymentStatusFail,
	StatusAuthFail:        model.PaymentStatusFail,
	StatusDeadlineExpired: model.PaymentStatusFail,
	StatusCanceled:        model.PaymentStatusFail,
}

// MapStatus переводит статус шлюза во внутренний PENDING/SUCCESS/FAIL
func MapStatus(s Status) (model.PaymentStatus, bool) {
	status, ok := statusMap[s]
	return status, ok
}

// KnownStatuses возвращает весь словарь шлюза
func KnownStatuses() []Status {
	return []Status{
		StatusNew, StatusFormShowed, StatusAuthorizing, Status3DSChecking, Status3DSChecked,
		StatusAuthorized, StatusConfirming, StatusConfirmed, StatusReversing,
		StatusPartialReversed, StatusReversed, StatusRefunding, StatusPartialRefunded,
		StatusRefunded, StatusRejected, StatusAuthFail, StatusDeadlineExpired, StatusCanceled,
	}
}
