package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilipi-dev/pilipi/internal/app"
	"github.com/pilipi-dev/pilipi/internal/cli/auth"
	appconfig "github.com/pilipi-dev/pilipi/internal/config"
	"github.com/pilipi-dev/pilipi/internal/models"
)

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *memTokenStore) SaveToken(server, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[server] = token
	return nil
}

func (m *memTokenStore) LoadToken(server string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[server]; ok {
		return t, nil
	}
	return "", auth.ErrNoToken
}

func (m *memTokenStore) DeleteToken(server string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, server)
	return nil
}

// marketplace is a fake backend. The access token of a user is the username
// and every password is "secret".
type marketplace struct {
	mu          sync.Mutex
	users       map[string]models.User
	temporary   map[string]bool
	expired     bool
	lastPatch   map[string]any
	registered  []models.Registration
	logoutCalls int
}

func newMarketplace() *marketplace {
	return &marketplace{
		users: map[string]models.User{
			"carla":  {ID: 1, Username: "carla", Email: "carla@example.com", FirstName: "Carla", LastName: "Souza", UserType: models.UserTypeClient, City: "Recife", State: "PE"},
			"paulo":  {ID: 2, Username: "paulo", Email: "paulo@example.com", FirstName: "Paulo", UserType: models.UserTypeProvider},
			"master": {ID: 3, Username: "master", UserType: models.UserTypeMaster},
		},
		temporary: map[string]bool{},
	}
}

func (m *marketplace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	unauthorized := func() {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Given token not valid for any token type"}`))
	}
	caller := func() (models.User, bool) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		u, ok := m.users[token]
		return u, ok && !m.expired
	}

	switch {
	case r.URL.Path == "/auth/login/":
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		user, ok := m.users[creds.Username]
		if !ok || creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "No active account found with the given credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access":                creds.Username,
			"user":                  user,
			"password_is_temporary": m.temporary[creds.Username],
		})

	case r.URL.Path == "/auth/register/":
		var reg models.Registration
		_ = json.NewDecoder(r.Body).Decode(&reg)
		if _, taken := m.users[reg.Username]; taken {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"username": ["A user with that username already exists."]}`))
			return
		}
		m.registered = append(m.registered, reg)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))

	case r.URL.Path == "/auth/profile/" && r.Method == http.MethodGet:
		user, ok := caller()
		if !ok {
			unauthorized()
			return
		}
		_ = json.NewEncoder(w).Encode(user)

	case r.URL.Path == "/auth/profile/" && r.Method == http.MethodPatch:
		user, ok := caller()
		if !ok {
			unauthorized()
			return
		}
		body, _ := io.ReadAll(r.Body)
		m.lastPatch = map[string]any{}
		_ = json.Unmarshal(body, &m.lastPatch)
		_ = json.Unmarshal(body, &user)
		m.users[user.Username] = user
		_ = json.NewEncoder(w).Encode(user)

	case r.URL.Path == "/auth/change-password/":
		if _, ok := caller(); !ok {
			unauthorized()
			return
		}
		var change models.PasswordChange
		_ = json.NewDecoder(r.Body).Decode(&change)
		if change.OldPassword != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"old_password": ["Wrong password."]}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))

	case r.URL.Path == "/auth/logout/":
		m.logoutCalls++
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *marketplace) expire() {
	m.mu.Lock()
	m.expired = true
	m.mu.Unlock()
}

type testEnv struct {
	api    *httptest.Server
	market *marketplace
	tokens *memTokenStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	m := newMarketplace()
	api := httptest.NewServer(m)
	t.Cleanup(api.Close)
	return &testEnv{api: api, market: m, tokens: &memTokenStore{tokens: map[string]string{}}}
}

// signedIn stores a credential for username so the next app restores it
func (e *testEnv) signedIn(t *testing.T, username string) {
	t.Helper()
	require.NoError(t, e.tokens.SaveToken(e.api.URL, username))
}

// newApp wires a fresh App, as a new CLI invocation would
func (e *testEnv) newApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.New(&appconfig.Config{}, e.api.URL, app.WithTokenStore(e.tokens))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// run executes the command built by newCmd against a fresh App
func (e *testEnv) run(t *testing.T, newCmd func(...Option) *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCmd(WithApp(e.newApp(t)), WithOutput(&out))
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) storedToken(t *testing.T) string {
	t.Helper()
	token, err := e.tokens.LoadToken(e.api.URL)
	if err != nil {
		assert.ErrorIs(t, err, auth.ErrNoToken)
		return ""
	}
	return token
}

func mustGetwd(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return dir
}

func mustChdir(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.Chdir(dir))
}

// inTempDir runs the test from an empty directory with its own HOME
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	original := mustGetwd(t)
	mustChdir(t, dir)
	t.Cleanup(func() { mustChdir(t, original) })
	return dir
}
