package service

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeys(t *testing.T) *APIKeyService {
	t.Helper()
	s, err := NewAPIKeyService("test-shared-secret")
	require.NoError(t, err)
	return s
}

func TestAPIKeyService_DeriveFormat(t *testing.T) {
	s := newTestKeys(t)
	key := s.Derive(5_000_000, 42)

	assert.Len(t, key, APIKeyLength)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), key)
	assert.Equal(t, key, s.Derive(5_000_000, 42), "derivation is deterministic")
	assert.NotEqual(t, key, s.Derive(5_000_001, 42))
	assert.NotEqual(t, key, s.Derive(5_000_000, 43))

	other, err := NewAPIKeyService("another-secret")
	require.NoError(t, err)
	assert.NotEqual(t, key, other.Derive(5_000_000, 42))
}

func TestAPIKeyService_Window(t *testing.T) {
	s := newTestKeys(t)
	assert.Equal(t, int64(0), s.Window(time.Unix(299, 0)))
	assert.Equal(t, int64(1), s.Window(time.Unix(300, 0)))
	assert.Equal(t, int64(5_650_000), s.Window(time.Unix(1_695_000_000, 0)))
}

func TestAPIKeyService_ValidateWindows(t *testing.T) {
	s := newTestKeys(t)
	now := time.Unix(1_695_000_123, 0)
	w := s.Window(now)

	tests := []struct {
		name   string
		window int64
		want   bool
	}{
		{"current window", w, true},
		{"previous window", w - 1, true},
		{"two windows back", w - 2, false},
		{"next window", w + 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ValidateAt(s.Derive(tt.window, 7), 7, now))
		})
	}
}

func TestAPIKeyService_RejectsMalformed(t *testing.T) {
	s := newTestKeys(t)
	now := time.Unix(1_695_000_123, 0)
	valid := s.Derive(s.Window(now), 7)

	assert.False(t, s.ValidateAt("", 7, now))
	assert.False(t, s.ValidateAt(valid[:31], 7, now))
	assert.False(t, s.ValidateAt(valid+"0", 7, now))
	assert.False(t, s.ValidateAt(strings.ToUpper(valid), 7, now))
	assert.False(t, s.ValidateAt(valid, 8, now), "key is bound to the bot id")
}

func TestAPIKeyService_ValidateUsesClock(t *testing.T) {
	s := newTestKeys(t)
	fixed := time.Unix(1_695_000_123, 0)
	s.now = func() time.Time { return fixed }

	assert.True(t, s.Validate(s.Derive(s.Window(fixed), 1), 1))

	s.now = func() time.Time { return fixed.Add(2 * KeyWindow) }
	assert.False(t, s.Validate(s.Derive(s.Window(fixed), 1), 1))
}

func TestNewAPIKeyService_EmptySecret(t *testing.T) {
	_, err := NewAPIKeyService("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
