// Package middleware holds the status API middleware chain
package middleware

import (
	"net/http"
	"time"

	"github.com/zinonweke/linear-notion-sync/internal/platform/logger"
	pnet "github.com/zinonweke/linear-notion-sync/internal/platform/net"

	"github.com/rs/zerolog"
)

// AccessLogOptions configures the zerolog access log
type AccessLogOptions struct {
	// Slow marks requests taking >= Slow as warn level, 0 disables slow marking
	Slow time.Duration
	// Quiet paths log successful requests at debug; probes hit these every few seconds
	Quiet []string
}

func (o AccessLogOptions) level(path string, status int, elapsed time.Duration) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case o.Slow > 0 && elapsed >= o.Slow:
		return zerolog.WarnLevel
	}
	if status < http.StatusBadRequest {
		for _, q := range o.Quiet {
			if q == path {
				return zerolog.DebugLevel
			}
		}
	}
	return zerolog.InfoLevel
}

// captureWriter wraps the original ResponseWriter and records status & bytes
type captureWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(b)
	if n > 0 {
		cw.bytes += n
	}
	return n, err
}

// AccessLog logs method, path, status, elapsed and bytes written on the http component logger.
// Server errors log at error, slow requests at warn
func AccessLog(opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(cw, r)

			elapsed := time.Since(start)
			log := logger.Named("http")
			evt := log.WithLevel(opt.level(r.URL.Path, cw.status, elapsed))
			if id := pnet.RequestID(r.Context()); id != "" {
				evt = evt.Str("request_id", id)
			}
			evt.Int("status", cw.status).
				Dur("elapsed", elapsed).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("bytes", cw.bytes).
				Msg("request done")
		})
	}
}
