package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"bus-finder/internal/common/logger"
)

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrw, r)

			log.Info("http request", map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrw.status,
				"remoteAddr": r.RemoteAddr,
				"duration":   time.Since(start).String(),
			})
		})
	}
}

func recoveryMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered", map[string]interface{}{
						"panic": rec,
						"path":  r.URL.Path,
						"stack": string(debug.Stack()),
					})
					writeJSON(w, http.StatusInternalServerError, errorResponse{
						Error:   "INTERNAL_ERROR",
						Message: "Something went wrong. Please try again.",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
