package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// period es el paso de tiempo TOTP en segundos (RFC 6238).
const period = 30

// Digits es el largo de los códigos generados.
const Digits = 6

// Code deriva el código de 6 dígitos para el secreto en el instante t.
// HOTP(K, floor(unix/30)) con HMAC-SHA1 y truncado dinámico (RFC 4226).
func Code(secret string, t time.Time) (string, error) {
	raw, err := Decode(secret)
	if err != nil {
		return "", err
	}
	return hotp(raw, t.Unix()/period), nil
}

// Verify chequea candidate contra los pasos t-window..t+window.
// La comparación es en tiempo constante; retorna false (nunca error) ante un
// no-match. Un secreto malformado propaga ErrInvalidSecretFormat del codec.
func Verify(secret, candidate string, t time.Time, window int) (bool, error) {
	raw, err := Decode(secret)
	if err != nil {
		return false, err
	}
	candidate = strings.TrimSpace(candidate)
	if len(candidate) != Digits {
		return false, nil
	}
	if window < 0 {
		window = 0
	}

	counter := t.Unix() / period
	match := 0
	// sin early-exit: se recorren todos los pasos aunque ya haya match
	for c := counter - int64(window); c <= counter+int64(window); c++ {
		match |= subtle.ConstantTimeCompare([]byte(hotp(raw, c)), []byte(candidate))
	}
	return match == 1, nil
}

// EnrollmentURL construye la URI otpauth:// para render de QR externo.
// otpauth://totp/{issuer}:{account}?secret=...&issuer=...
func EnrollmentURL(issuer, account, secretB32 string) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, account))
	q := url.Values{}
	q.Set("secret", secretB32)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", Digits))
	q.Set("period", fmt.Sprintf("%d", period))
	return fmt.Sprintf("otpauth://totp/%s?%s", label, q.Encode())
}

func hotp(key []byte, counter int64) string {
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter & 0xff)
		counter >>= 8
	}
	m := hmac.New(sha1.New, key)
	_, _ = m.Write(msg[:])
	sum := m.Sum(nil)
	offset := int(sum[len(sum)-1] & 0x0f)
	bin := (int(sum[offset])&0x7f)<<24 | int(sum[offset+1])<<16 | int(sum[offset+2])<<8 | int(sum[offset+3])
	return fmt.Sprintf("%06d", bin%1_000_000)
}
