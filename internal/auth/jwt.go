package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// DecodeExpiry extracts the exp claim from a JWT-shaped bearer token.
// Malformed tokens (wrong segment count, undecodable payload, missing exp)
// report ok=false; they are treated as already expired, never as a fatal
// error for the caller.
func DecodeExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		// Some issuers pad the segment.
		payload, err = base64.URLEncoding.DecodeString(parts[1])
		if err != nil {
			return time.Time{}, false
		}
	}
	var claims struct {
		Exp *float64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == nil {
		return time.Time{}, false
	}
	return time.Unix(int64(*claims.Exp), 0), true
}
