package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"real ip wins", map[string]string{"X-Real-IP": "1.1.1.1", "CF-Connecting-IP": "2.2.2.2"}, "9.9.9.9:1", "1.1.1.1"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "2.2.2.2", "X-Forwarded-For": "3.3.3.3"}, "9.9.9.9:1", "2.2.2.2"},
		{"first forwarded entry", map[string]string{"X-Forwarded-For": " 3.3.3.3 , 4.4.4.4"}, "9.9.9.9:1", "3.3.3.3"},
		{"remote addr host", nil, "9.9.9.9:1234", "9.9.9.9"},
		{"remote addr without port", nil, "9.9.9.9", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "req-1")
		h.ServeHTTP(rec, r)
		assert.Equal(t, "req-1", seen)
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestAdminKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name     string
		key      string
		provided string
		want     int
	}{
		{"valid", "secret", "secret", http.StatusNoContent},
		{"wrong", "secret", "nope", http.StatusUnauthorized},
		{"missing", "secret", "", http.StatusUnauthorized},
		{"disabled", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
			if tt.provided != "" {
				r.Header.Set("X-Login-Key", tt.provided)
			}
			rec := httptest.NewRecorder()
			AdminKey(tt.key)(ok).ServeHTTP(rec, r)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
