// Package signature считает и проверяет токен запросов эквайринга.
//
// Токен: к полям запроса добавляется пароль терминала под ключом Password,
// пары сортируются по ключу, значения склеиваются без разделителей,
// результат хешируется SHA-256 и кодируется в hex. Поле Token в расчёт не входит.
package signature

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

const (
	// SecretKey зарезервированный ключ, под которым в расчёт попадает пароль
	SecretKey = "Password"
	// TokenKey поле с самим токеном, исключается из расчёта
	TokenKey = "Token"
)

// Fields плоские скалярные поля запроса или уведомления
type Fields map[string]string

// Sign вычисляет токен для набора полей
func Sign(fields Fields, secret string) string {
	keys := make([]string, 0, len(fields)+1)
	values := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		if k == TokenKey || k == SecretKey {
			continue
		}
		keys = append(keys, k)
		values[k] = v
	}
	keys = append(keys, SecretKey)
	values[SecretKey] = secret

	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(values[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify пересчитывает токен и сравнивает за постоянное время
func Verify(fields Fields, token, secret string) bool {
	if token == "" {
		return false
	}
	expected := Sign(fields, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(token))) == 1
}
