package http

import (
	"net/http"
	"time"
)

// ServerConfig son los timeouts del server, salidos de config.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewServer construye el *http.Server con timeouts sanos. El shutdown
// graceful lo maneja el comando serve.
func NewServer(cfg ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
