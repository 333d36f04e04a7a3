package ids

import (
	"strings"
	"testing"
)

func TestNewRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewRequestID()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if !strings.HasPrefix(id, "req_") {
			t.Fatalf("missing prefix: %q", id)
		}
		if len(id) < 10 {
			t.Fatalf("id too short: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
