// Package session maneja el ciclo de vida de sesiones: creación, idle
// timeout, rotación periódica y binding de fingerprint.
package session

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"
)

// Errores del ciclo de vida. Para el caller los tres significan "sesión
// inválida"; el detalle queda en el audit log.
var (
	ErrNotFound            = errors.New("session: not found")
	ErrExpired             = errors.New("session: expired")
	ErrFingerprintMismatch = errors.New("session: fingerprint mismatch")
)

// Record es el estado persistido de una sesión. El ID crudo viaja solo en el
// cookie; la key de storage es su SHA-256. CsrfKey es el scope estable de los
// tokens anti-forgery: sobrevive la rotación del ID, así un token emitido
// antes de rotar sigue validando después.
type Record struct {
	AccountID       string    `json:"account_id"`
	CreatedAt       time.Time `json:"created_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	LastRotationAt  time.Time `json:"last_rotation_at"`
	FingerprintHash string    `json:"fingerprint_hash"`
	CsrfKey         string    `json:"csrf_key"`
}

// Fingerprint son los headers que presenta el cliente. Su hash queda atado a
// la sesión: un cambio destruye la sesión, nunca se "confía igual".
type Fingerprint struct {
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
}

// Hash deriva el fingerprint hash (sha256 base64url).
func (f Fingerprint) Hash() string {
	h := sha256.New()
	h.Write([]byte(f.UserAgent))
	h.Write([]byte{0})
	h.Write([]byte(f.AcceptLanguage))
	h.Write([]byte{0})
	h.Write([]byte(f.AcceptEncoding))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Config son los parámetros de sesión, con defaults del producto.
type Config struct {
	IdleTimeout      time.Duration // default 2h, tope 24h
	RotationInterval time.Duration // default 30m
	MaxLifetime      time.Duration // tope absoluto, default 24h
}

func (c *Config) applyDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Hour
	}
	if c.IdleTimeout > 24*time.Hour {
		c.IdleTimeout = 24 * time.Hour
	}
	if c.RotationInterval <= 0 {
		c.RotationInterval = 30 * time.Minute
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = 24 * time.Hour
	}
}
