package middleware

import (
	"crypto/subtle"
	"net/http"

	"botevents-api/internal/logger"
	"botevents-api/pkg/apierror"
)

// AdminKey guards admin routes with the X-Login-Key header.
// An empty configured key disables every guarded route.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Login-Key")
			if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				logger.FromContext(r.Context()).Warn("[Admin] Rejected login key", "origin", ClientIP(r), "path", r.URL.Path)
				writeError(w, apierror.Unauthorized("Invalid login key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
