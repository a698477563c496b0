package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strconv"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeyWindow is the lifetime of one derived API key.
	KeyWindow = 300 * time.Second

	// APIKeyLength is the length of a derived key in hex characters.
	APIKeyLength = 32

	apiKeyInfo = "event-api-key"
)

// ErrEmptySecret is returned when the shared secret is empty.
var ErrEmptySecret = errors.New("api key shared secret is empty")

// APIKeyService derives and validates time-windowed per-bot API keys.
// A key is valid during its own window and the one after it.
type APIKeyService struct {
	macKey []byte
	window int64
	now    func() time.Time
}

// NewAPIKeyService expands sharedSecret into a MAC key with HKDF-SHA256.
func NewAPIKeyService(sharedSecret string) (*APIKeyService, error) {
	if sharedSecret == "" {
		return nil, ErrEmptySecret
	}

	macKey := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(sharedSecret), nil, []byte(apiKeyInfo)), macKey); err != nil {
		return nil, fmt.Errorf("failed to derive api key: %w", err)
	}

	return &APIKeyService{
		macKey: macKey,
		window: int64(KeyWindow / time.Second),
		now:    time.Now,
	}, nil
}

// Window returns the key window containing t.
func (s *APIKeyService) Window(t time.Time) int64 {
	return t.Unix() / s.window
}

func (s *APIKeyService) mac() hash.Hash {
	return hmac.New(sha256.New, s.macKey)
}

// Derive returns the key for botID in the given window: 16 hex chars of
// HMAC(window:botID) followed by 16 hex chars of HMAC(digest || window start).
func (s *APIKeyService) Derive(window, botID int64) string {
	m := s.mac()
	m.Write([]byte(strconv.FormatInt(window, 10) + ":" + strconv.FormatInt(botID, 10)))
	digest := m.Sum(nil)

	m = s.mac()
	m.Write(digest)
	m.Write([]byte(strconv.FormatInt(window*s.window, 10)))
	entropy := m.Sum(nil)

	return hex.EncodeToString(digest[:8]) + hex.EncodeToString(entropy[:8])
}

// Validate checks provided against the current and previous window.
func (s *APIKeyService) Validate(provided string, botID int64) bool {
	return s.ValidateAt(provided, botID, s.now())
}

// ValidateAt is Validate at time t. Both windows are always compared and the
// comparison runs over the full key length.
func (s *APIKeyService) ValidateAt(provided string, botID int64, t time.Time) bool {
	var buf [APIKeyLength]byte
	copy(buf[:], provided)
	lengthOK := subtle.ConstantTimeEq(int32(len(provided)), APIKeyLength)

	current := s.Window(t)
	match := 0
	for _, w := range [2]int64{current, current - 1} {
		match |= subtle.ConstantTimeCompare(buf[:], []byte(s.Derive(w, botID)))
	}
	return match&lengthOK == 1
}
