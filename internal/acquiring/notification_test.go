package acquiring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotification(t *testing.T) {
	body := []byte(`{
		"TerminalKey": "TestTerminal",
		"OrderId": "8f0c3c0e-4c55-4a1e-9d2b-2f0d8b1c6a11",
		"Success": true,
		"Status": "CONFIRMED",
		"PaymentId": 3093639567,
		"ErrorCode": "0",
		"Amount": 19900,
		"CardId": 322264,
		"Pan": "430000******0777",
		"ExpDate": "1122",
		"Data": {"Email": "payer@example.com"},
		"RebillId": null,
		"Token": "abc"
	}`)

	n, err := ParseNotification(body)
	require.NoError(t, err)

	assert.Equal(t, "8f0c3c0e-4c55-4a1e-9d2b-2f0d8b1c6a11", n.OrderID)
	assert.Equal(t, "3093639567", n.PaymentID)
	assert.Equal(t, StatusConfirmed, n.Status)
	assert.Equal(t, int64(19900), n.Amount)
	assert.True(t, n.Success)
	assert.Equal(t, "abc", n.Token)

	assert.Equal(t, "true", n.Fields["Success"])
	assert.Equal(t, "322264", n.Fields["CardId"])
	assert.NotContains(t, n.Fields, "Data")
	assert.NotContains(t, n.Fields, "RebillId")
}

func TestParseNotification_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":   `{`,
		"no order":   `{"Status": "CONFIRMED"}`,
		"no status":  `{"OrderId": "x"}`,
		"bad amount": `{"OrderId": "x", "Status": "NEW", "Amount": 1.5}`,
	}
	for name, body := range cases {
		_, err := ParseNotification([]byte(body))
		assert.Error(t, err, name)
	}
}
