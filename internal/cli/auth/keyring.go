package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service credentials are filed under
const DefaultKeyringService = "pilipi-cli"

// KeyringTokenStore keeps tokens in the OS keychain, one entry per server
type KeyringTokenStore struct {
	service string
}

// NewKeyringTokenStore returns a store filing entries under service, or
// DefaultKeyringService when it is empty
func NewKeyringTokenStore(service string) *KeyringTokenStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringTokenStore{service: service}
}

func entryKey(server string) string {
	return "token-" + server
}

func (k *KeyringTokenStore) SaveToken(server, token string) error {
	if err := keyring.Set(k.service, entryKey(server), token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (k *KeyringTokenStore) LoadToken(server string) (string, error) {
	token, err := keyring.Get(k.service, entryKey(server))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

func (k *KeyringTokenStore) DeleteToken(server string) error {
	err := keyring.Delete(k.service, entryKey(server))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
