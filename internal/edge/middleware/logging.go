package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// AccessLog records one event per request: client, method, path, status and
// duration. Installed outermost so it observes the final status.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Info().
			Str("ip", ClientKey(r)).
			Str("method", r.Method).
			Str("path", r.RequestURI).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Str("user_agent", r.UserAgent()).
			Msg("request")
	})
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
