package ids

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// New returns a prefixed random identifier, base58 encoded so it stays
// header- and log-safe.
func New(prefix string) (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return prefix + "_" + base58.Encode(buf), nil
}

// NewRequestID generates the correlation id attached to one ask request
// and shared by all of its retries and recovery restarts.
func NewRequestID() (string, error) {
	return New("req")
}
