// Package codec reverses the light obfuscation bots apply to event payloads:
// JSON is XORed with a shared key, base64 encoded and carried inside an
// analytics-shaped envelope.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformedPayload is returned for any envelope, encoding or JSON failure.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrEmptyKey is returned when the codec key is empty.
	ErrEmptyKey = errors.New("codec key is empty")
)

// Envelope paths searched, in order, for the encoded payload.
var payloadPaths = []string{"custom_properties.i_data", "custom_properties.payload"}

// XOR applies key cyclically over data. It is its own inverse.
func XOR(data, key []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// Encode XORs plain with key and returns standard base64.
func Encode(plain, key []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	return base64.StdEncoding.EncodeToString(XOR(plain, key)), nil
}

// Decode reverses Encode.
func Decode(encoded string, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return XOR(raw, key), nil
}

// Codec binds the shared key.
type Codec struct {
	key []byte
}

// New creates a Codec for key.
func New(key string) (*Codec, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return &Codec{key: []byte(key)}, nil
}

// DecodeEnvelope extracts the encoded payload from body, decodes it and
// unmarshals the JSON into v.
func (c *Codec) DecodeEnvelope(body []byte, v any) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: envelope is not valid JSON", ErrMalformedPayload)
	}

	var encoded gjson.Result
	for _, path := range payloadPaths {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
			encoded = r
			break
		}
	}
	if !encoded.Exists() {
		return fmt.Errorf("%w: missing custom_properties payload", ErrMalformedPayload)
	}

	plain, err := Decode(encoded.Str, c.key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return nil
}

// EncodeEnvelope marshals v, encodes it and wraps it in an analytics-style
// envelope under custom_properties.i_data. meta is merged into the top level.
func (c *Codec) EncodeEnvelope(v any, meta map[string]any) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	encoded, err := Encode(plain, c.key)
	if err != nil {
		return nil, err
	}

	envelope := map[string]any{
		"event":             "session_heartbeat",
		"custom_properties": map[string]any{"i_data": encoded},
	}
	for k, val := range meta {
		if k == "custom_properties" {
			continue
		}
		envelope[k] = val
	}
	return json.Marshal(envelope)
}
