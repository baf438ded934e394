package auth

import (
	"errors"
	"strings"
)

// ErrNoToken is returned when no credential has been stored for a server
var ErrNoToken = errors.New("not authenticated. Please run 'pilipi login' first")

// TokenStore persists one bearer token per API server. Implementations:
// KeyringTokenStore and DBTokenStore.
type TokenStore interface {
	SaveToken(server, token string) error
	LoadToken(server string) (string, error)
	DeleteToken(server string) error
}

var (
	_ TokenStore = (*KeyringTokenStore)(nil)
	_ TokenStore = (*DBTokenStore)(nil)
)

// Slot binds a TokenStore to a single API server: the one named slot that
// holds the durable bearer credential for that server.
type Slot struct {
	store  TokenStore
	server string
}

// NewSlot returns the credential slot for server
func NewSlot(store TokenStore, server string) *Slot {
	return &Slot{store: store, server: strings.TrimRight(server, "/")}
}

// Server returns the server key of the slot
func (s *Slot) Server() string {
	return s.server
}

// Load returns the stored token, or "" with no error when the slot is empty
func (s *Slot) Load() (string, error) {
	token, err := s.store.LoadToken(s.server)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// Save writes token into the slot
func (s *Slot) Save(token string) error {
	return s.store.SaveToken(s.server, token)
}

// Clear empties the slot; clearing an empty slot is a no-op
func (s *Slot) Clear() error {
	return s.store.DeleteToken(s.server)
}
