package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const codeBytes = 32

// newResultCodes генерирует пару одноразовых кодов исхода оплаты.
// Коды различаются и больше никогда не перегенерируются.
func newResultCodes() (successCode, failCode string, err error) {
	for successCode == failCode {
		if successCode, err = randomHex(codeBytes); err != nil {
			return "", "", err
		}
		if failCode, err = randomHex(codeBytes); err != nil {
			return "", "", err
		}
	}
	return successCode, failCode, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func codesEqual(expected, presented string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
