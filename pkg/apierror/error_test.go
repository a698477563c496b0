package apierror

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTooManyRequests(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		minutes   int
	}{
		{"full lockout", 30 * time.Minute, 30},
		{"partial minute rounds up", 29*time.Minute + time.Second, 30},
		{"under a minute", 5 * time.Second, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := TooManyRequests(tt.remaining)
			assert.Equal(t, http.StatusTooManyRequests, e.StatusCode)
			assert.Equal(t, tt.minutes, e.RetryAfterMinutes())

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(e.ToJSON(), &body))
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, "RATE_LIMITED", body["code"])
			assert.Equal(t, float64(tt.minutes), body["retry_after_minutes"])
		})
	}

	assert.Equal(t, "Rate limit exceeded. Retry in 30 minutes.", TooManyRequests(30*time.Minute).Message)
}

func TestToJSON_ValidationDetails(t *testing.T) {
	e := ValidationError("Invalid request format", FieldError{Field: "username", Message: "username is required"})

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(e.ToJSON(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Len(t, body["details"], 1)
	assert.NotContains(t, body, "retry_after_minutes")
}
