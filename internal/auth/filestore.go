package auth

import (
	"errors"
	"os"
	"sync"

	"ask-insight/go-client/internal/securestore"
	"ask-insight/go-client/pkg/models"
)

// FileTokenStore persists the credential snapshot encrypted at rest. The
// passphrase is session-scoped: it lives only as long as the application.
type FileTokenStore struct {
	mu     sync.Mutex
	path   string
	secret string
}

func NewFileTokenStore(path, secret string) *FileTokenStore {
	return &FileTokenStore{path: path, secret: secret}
}

func (s *FileTokenStore) Load() (models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cred models.Credential
	err := securestore.ReadDecryptedJSON(s.path, s.secret, &cred)
	if errors.Is(err, os.ErrNotExist) {
		return models.Credential{}, nil
	}
	if err != nil {
		return models.Credential{}, err
	}
	return cred, nil
}

func (s *FileTokenStore) Save(cred models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return securestore.WriteEncryptedJSON(s.path, s.secret, cred)
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryTokenStore keeps the credential in process memory only.
type MemoryTokenStore struct {
	mu   sync.Mutex
	cred models.Credential
	set  bool
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load() (models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return models.Credential{}, nil
	}
	return s.cred, nil
}

func (s *MemoryTokenStore) Save(cred models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.set = true
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = models.Credential{}
	s.set = false
	return nil
}
