package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"listing-publisher/utils"
)

// LoggerMiddleware logs each request with its status and duration.
func LoggerMiddleware(logger *utils.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("[http] %s %s -> %d (%d bytes, %dms)",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start).Milliseconds())
		})
	}
}
