package helpers

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/shelfguard/internal/session"
)

// CookieConfig son los atributos del cookie de sesión, salidos de config.
type CookieConfig struct {
	Name     string
	Domain   string
	SameSite string // strict | lax
	Secure   bool
	TTL      time.Duration
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lax":
		return http.SameSiteLaxMode
	default:
		// el default del producto es Strict; cualquier otra cosa ya la
		// rechazó config.Validate
		return http.SameSiteStrictMode
	}
}

// BuildSessionCookie construye el cookie de sesión con flags de seguridad.
// Siempre HttpOnly: el ID opaco nunca es accesible desde JS.
func BuildSessionCookie(cfg CookieConfig, value string) *http.Cookie {
	c := &http.Cookie{
		Name:     cfg.Name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().UTC().Add(cfg.TTL),
		MaxAge:   int(cfg.TTL.Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: parseSameSite(cfg.SameSite),
	}
	if cfg.Domain != "" {
		c.Domain = cfg.Domain
	}
	return c
}

// ExpireSessionCookie construye el cookie que borra la sesión en el cliente.
func ExpireSessionCookie(cfg CookieConfig) *http.Cookie {
	c := BuildSessionCookie(cfg, "")
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	return c
}

// ClientIP extrae la IP de origen, respetando X-Forwarded-For si vino de un
// proxy (primer hop).
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FingerprintFrom arma el fingerprint de sesión con los headers del cliente.
func FingerprintFrom(r *http.Request) session.Fingerprint {
	return session.Fingerprint{
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
	}
}
