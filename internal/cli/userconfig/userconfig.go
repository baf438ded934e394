// Package userconfig keeps per-user CLI state outside the project: which API
// server is selected and, for each server, where the user last was and who
// last signed in. Credentials never go here; they live in the credential
// store.
package userconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	configDirName  = "pilipi"
	configFileName = "config.json"
)

// ServerState is what the CLI remembers about one API server
type ServerState struct {
	LastUsername string `json:"last_username,omitempty"`
	LastLocation string `json:"last_location,omitempty"`
}

// UserConfig is the content of ~/.config/pilipi/config.json
type UserConfig struct {
	SelectedServerURL string                 `json:"selected_server_url,omitempty"`
	Servers           map[string]ServerState `json:"servers,omitempty"`
}

// Server returns the remembered state for serverURL
func (c *UserConfig) Server(serverURL string) ServerState {
	return c.Servers[serverKey(serverURL)]
}

func serverKey(serverURL string) string {
	return strings.TrimRight(serverURL, "/")
}

// GetConfigPath returns ~/.config/pilipi/config.json
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", configDirName, configFileName), nil
}

// Load reads the user config; a missing file is an empty config
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return &UserConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}
	return &cfg, nil
}

// Update loads the config, applies fn and writes it back
func Update(fn func(*UserConfig)) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	fn(cfg)

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}
	return nil
}

// updateServer edits the state of one server, dropping it once empty
func updateServer(serverURL string, fn func(*ServerState)) error {
	return Update(func(cfg *UserConfig) {
		key := serverKey(serverURL)
		st := cfg.Servers[key]
		fn(&st)
		if st == (ServerState{}) {
			delete(cfg.Servers, key)
			return
		}
		if cfg.Servers == nil {
			cfg.Servers = make(map[string]ServerState)
		}
		cfg.Servers[key] = st
	})
}

// SetSelectedServer records the server commands talk to by default
func SetSelectedServer(serverURL string) error {
	return Update(func(cfg *UserConfig) {
		cfg.SelectedServerURL = serverKey(serverURL)
	})
}

// GetSelectedServer returns the selected server URL, or "" if none
func GetSelectedServer() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return cfg.SelectedServerURL, nil
}

// RememberUsername stores who last logged in to serverURL
func RememberUsername(serverURL, username string) error {
	return updateServer(serverURL, func(st *ServerState) {
		st.LastUsername = username
	})
}

// RememberLocation stores the last view reached on serverURL; "" forgets it
func RememberLocation(serverURL, location string) error {
	return updateServer(serverURL, func(st *ServerState) {
		st.LastLocation = location
	})
}
