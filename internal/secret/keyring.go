package secret

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name secrets are filed under.
const DefaultService = "sql-workbench"

// KeyringStore implements SecretStore using the OS keyring
// (Keychain, Secret Service or Windows Credential Manager).
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a KeyringStore. An empty service uses DefaultService.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{service: service}
}

func (k *KeyringStore) Set(key string, value []byte) error {
	if err := keyring.Set(k.service, key, string(value)); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	return nil
}

func (k *KeyringStore) Get(key string) ([]byte, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get %s: %w", key, err)
	}
	return []byte(v), nil
}

func (k *KeyringStore) Delete(key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}
	return nil
}
