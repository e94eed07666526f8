package widget

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// IdentityStore persists the customer pseudo-identity across visits, the
// way the embed keeps it in browser-local storage.
type IdentityStore interface {
	Load() (string, error)
	Save(id string) error
}

// EnsureCustomerID returns the stored identity or generates and persists
// a fresh one. A store failure still yields a usable identity for the
// current session.
func EnsureCustomerID(store IdentityStore) string {
	if store != nil {
		if id, err := store.Load(); err == nil && id != "" {
			return id
		}
	}
	id := "cust_" + uuid.New().String()
	if store != nil {
		_ = store.Save(id)
	}
	return id
}

// FileIdentityStore keeps the identity in a single file.
type FileIdentityStore struct {
	Path string
}

func (s *FileIdentityStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileIdentityStore) Save(id string) error {
	return os.WriteFile(s.Path, []byte(id), 0o600)
}
