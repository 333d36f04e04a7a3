package securestore

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	data, err := Encrypt("pass", []byte("bearer-token"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	plain, err := Decrypt("pass", data)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(plain) != "bearer-token" {
		t.Fatalf("unexpected plaintext: %q", string(plain))
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	data, err := Encrypt("pass", []byte("bearer-token"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt("other", data); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	data, err := Encrypt("pass", []byte("bearer-token"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	data[len(data)-2] ^= 0xFF
	_, err = Decrypt("pass", data)
	if !errors.Is(err, ErrAuthFailed) && !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected auth or invalid error, got %v", err)
	}
}

func TestDecryptRejectsPlaintext(t *testing.T) {
	if _, err := Decrypt("pass", []byte(`{"token":"raw"}`)); !errors.Is(err, ErrPlaintext) {
		t.Fatalf("expected ErrPlaintext, got %v", err)
	}
}

func TestJSONSnapshotRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cred", "token.enc")
	in := map[string]string{"token": "abc"}
	if err := WriteEncryptedJSON(path, "secret", in); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var out map[string]string
	if err := ReadDecryptedJSON(path, "secret", &out); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out["token"] != "abc" {
		t.Fatalf("unexpected snapshot: %v", out)
	}
}

func TestDecryptTruncatedNonceIsInvalid(t *testing.T) {
	data, err := Encrypt("pass", []byte("bearer-token"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data[len(filePrefix):], &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	env.Nonce = env.Nonce[:4]
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	if _, err := Decrypt("pass", append([]byte(filePrefix), raw...)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for truncated nonce, got %v", err)
	}
}
