package acquiring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Freeeeeet/paybook/internal/signature"
)

// Notification входящее уведомление шлюза о смене статуса
type Notification struct {
	OrderID   string
	PaymentID string
	Status    Status
	Amount    int64
	Success   bool
	Token     string

	// Fields все скалярные поля верхнего уровня, по ним считается токен
	Fields signature.Fields
}

// ParseNotification разбирает тело уведомления. Вложенные объекты и null
// в подпись не входят и отбрасываются.
func ParseNotification(body []byte) (*Notification, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}

	fields := make(signature.Fields, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = strconv.FormatBool(val)
		}
	}

	n := &Notification{
		OrderID:   fields["OrderId"],
		PaymentID: fields["PaymentId"],
		Status:    Status(fields["Status"]),
		Success:   fields["Success"] == "true",
		Token:     fields[signature.TokenKey],
		Fields:    fields,
	}

	if n.OrderID == "" {
		return nil, fmt.Errorf("notification has no OrderId")
	}
	if n.Status == "" {
		return nil, fmt.Errorf("notification has no Status")
	}

	if amount, ok := fields["Amount"]; ok {
		parsed, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse notification amount: %w", err)
		}
		n.Amount = parsed
	}

	return n, nil
}
