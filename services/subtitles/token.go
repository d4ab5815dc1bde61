package subtitles

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// TokenPayload is the state needed to re-fetch and post-process a candidate
// without re-running the search. Tokens are opaque to clients.
type TokenPayload struct {
	Source    string            `json:"s"`
	Ref       string            `json:"r"`
	Params    map[string]string `json:"p,omitempty"`
	FPS       float64           `json:"f,omitempty"`
	RuntimeMS int64             `json:"d,omitempty"`
	Filename  string            `json:"n,omitempty"`
}

// EncodeToken serializes a payload into a URL-safe opaque token.
func EncodeToken(payload TokenPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeToken reverses EncodeToken. Any malformed input maps to
// ErrInvalidToken; callers must not leak decode details to clients.
func DecodeToken(token string) (TokenPayload, error) {
	var payload TokenPayload
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return payload, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if payload.Source == "" || payload.Ref == "" {
		return payload, fmt.Errorf("%w: missing source or ref", ErrInvalidToken)
	}
	return payload, nil
}
