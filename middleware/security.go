package middleware

import (
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"megatrade-web/utils"
)

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' https://www.paypal.com https://*.paypal.com; " +
	"frame-src https://*.paypal.com; " +
	"connect-src 'self' https://*.paypal.com; " +
	"img-src 'self' data: https:; " +
	"style-src 'self' 'unsafe-inline'"

func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy)

		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/internal/") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}

		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs slow requests and every request that ended in an error.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		elapsed := time.Since(start)
		if elapsed > 500*time.Millisecond || wrapper.status >= 400 {
			fields := log.Fields{
				"method":   r.Method,
				"uri":      r.RequestURI,
				"remote":   utils.ClientIP(r),
				"status":   wrapper.status,
				"duration": elapsed,
			}
			if identity := IdentityFromContext(r.Context()); identity != nil {
				fields["user_id"] = identity.UserID
			}
			log.WithFields(fields).Info("request")
		}
	})
}
