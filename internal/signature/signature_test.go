package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_KnownVector(t *testing.T) {
	fields := Fields{
		"TerminalKey": "TestTerminal",
		"Amount":      "19900",
		"OrderId":     "21050",
	}

	assert.Equal(t,
		"a0f0482bf9510e351e76046673b6739a59d8233620293085239024a4074ec164",
		Sign(fields, "secretpassword"))
}

func TestSign_IgnoresTokenField(t *testing.T) {
	fields := Fields{
		"TerminalKey": "TestTerminal",
		"Amount":      "19900",
		"OrderId":     "21050",
		"Status":      "CONFIRMED",
		"Success":     "true",
	}
	token := Sign(fields, "secretpassword")
	assert.Equal(t, "a7d81e1606979c573c5859566b3c6ba4a95c5aa25c0bebc9a176f62b7c96a95b", token)

	fields[TokenKey] = token
	assert.Equal(t, token, Sign(fields, "secretpassword"))
	assert.True(t, Verify(fields, token, "secretpassword"))
}

func TestVerify_RoundTrip(t *testing.T) {
	sets := []Fields{
		{},
		{"OrderId": "x"},
		{"a": "1", "b": "2", "c": ""},
		{"Email": "payer@example.com", "Amount": "100", "Description": "Консультация"},
	}
	for _, fields := range sets {
		token := Sign(fields, "s3cret")
		assert.True(t, Verify(fields, token, "s3cret"), "%v", fields)
	}
}

func TestVerify_AnySingleCharMutationFails(t *testing.T) {
	fields := Fields{
		"TerminalKey": "TestTerminal",
		"Amount":      "19900",
		"OrderId":     "8f0c3c0e-4c55-4a1e-9d2b-2f0d8b1c6a11",
		"Status":      "CONFIRMED",
	}
	token := Sign(fields, "secretpassword")
	require.True(t, Verify(fields, token, "secretpassword"))

	for key, value := range fields {
		for i := range value {
			mutated := Fields{}
			for k, v := range fields {
				mutated[k] = v
			}
			b := []byte(value)
			b[i] ^= 0x01
			mutated[key] = string(b)

			assert.False(t, Verify(mutated, token, "secretpassword"), "%s[%d]", key, i)
		}
	}
}

func TestVerify_Rejects(t *testing.T) {
	fields := Fields{"OrderId": "1"}
	token := Sign(fields, "secret")

	assert.False(t, Verify(fields, token, "other"))
	assert.False(t, Verify(fields, "", "secret"))
	assert.False(t, Verify(fields, token[:10], "secret"))
	assert.True(t, Verify(fields, token, "secret"))
}
