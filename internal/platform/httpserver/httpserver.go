package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
)

type Option func(*http.Server)

// WithLogger routes net/http's internal errors (TLS handshakes, panics in
// handlers) through logger at warn level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *http.Server) {
		if logger != nil {
			s.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
		}
	}
}

// WithWriteTimeout overrides the response write deadline. Non-positive values
// keep the default.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *http.Server) {
		if d > 0 {
			s.WriteTimeout = d
		}
	}
}

// New builds the API server. Handlers bound their own upstream calls, so the
// write timeout only has to cover the slowest of those plus encoding.
func New(addr string, handler http.Handler, opts ...Option) *http.Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
