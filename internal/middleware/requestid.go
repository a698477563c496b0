package middleware

import (
	"context"
	"net/http"

	"botevents-api/internal/logger"
)

// RequestID is a middleware that adds a unique request ID to each request.
// An incoming X-Request-ID header is reused.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := logger.WithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	id, _ := logger.RequestIDFromContext(ctx)
	return id
}
