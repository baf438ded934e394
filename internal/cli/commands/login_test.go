package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilipi-dev/pilipi/internal/cli/userconfig"
)

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, NewLoginCmd, "--username", "carla", "--password", "secret")

	require.NoError(t, err)
	assert.Contains(t, out, "✓ Logged in successfully.")
	assert.Contains(t, out, "User: Carla Souza (carla@example.com)")
	assert.Contains(t, out, "Role: Client")
	assert.Contains(t, out, "Home: /dashboard")
	assert.Equal(t, "carla", env.storedToken(t))
}

func TestLogin_MasterLandsOnPanel(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, NewLoginCmd, "--username", "master", "--password", "secret")

	require.NoError(t, err)
	assert.Contains(t, out, "Home: /master-panel")
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, NewLoginCmd, "--username", "carla", "--password", "nope")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "No active account found with the given credentials")
	assert.Empty(t, env.storedToken(t))
}

func TestLogin_WrongPasswordKeepsExistingSession(t *testing.T) {
	env := newTestEnv(t)
	env.signedIn(t, "paulo")

	out, err := env.run(t, NewLoginCmd, "--username", "carla", "--password", "nope")

	// The login view is closed to a signed in user, so nothing is sent
	require.NoError(t, err)
	assert.Contains(t, out, "Already logged in as paulo (Service provider)")
	assert.Equal(t, "paulo", env.storedToken(t))
}

func TestLogin_TemporaryPassword(t *testing.T) {
	env := newTestEnv(t)
	env.market.temporary["carla"] = true

	out, err := env.run(t, NewLoginCmd, "--username", "carla", "--password", "secret")

	require.NoError(t, err)
	assert.Contains(t, out, "Your password is temporary")
	assert.NotContains(t, out, "Home:")
}

func TestLogin_RestoreFailureWarns(t *testing.T) {
	env := newTestEnv(t)
	env.signedIn(t, "ghost")

	out, err := env.run(t, NewLoginCmd, "--username", "carla", "--password", "secret")

	require.NoError(t, err)
	assert.Contains(t, out, "⚠ Given token not valid for any token type")
	assert.Contains(t, out, "✓ Logged in successfully.")
	assert.Equal(t, "carla", env.storedToken(t))
}

func TestLogin_UsernameRequired(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("PILIPI_USERNAME", "")

	_, err := env.run(t, NewLoginCmd, "--password", "secret")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "username is required")
}

func TestLogin_CredentialsFromEnvironment(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("PILIPI_USERNAME", "paulo")
	t.Setenv("PILIPI_PASSWORD", "secret")

	out, err := env.run(t, NewLoginCmd)

	require.NoError(t, err)
	assert.Contains(t, out, "Role: Service provider")
}

func TestLogin_RemembersUsernameAndHome(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, NewLoginCmd, "--username", "carla", "--password", "secret")
	require.NoError(t, err)

	uc, err := userconfig.Load()
	require.NoError(t, err)
	assert.Equal(t, userconfig.ServerState{LastUsername: "carla", LastLocation: "/dashboard"}, uc.Server(env.api.URL))
}

func TestLogin_DefaultsToRememberedUsername(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("PILIPI_USERNAME", "")
	require.NoError(t, userconfig.RememberUsername(env.api.URL, "paulo"))

	out, err := env.run(t, NewLoginCmd, "--password", "secret")

	require.NoError(t, err)
	assert.Contains(t, out, "as paulo...")
	assert.Equal(t, "paulo", env.storedToken(t))
}

func TestLogin_TemporaryPasswordKeepsLocation(t *testing.T) {
	env := newTestEnv(t)
	env.market.temporary["carla"] = true

	_, err := env.run(t, NewLoginCmd, "--username", "carla", "--password", "secret")
	require.NoError(t, err)

	uc, err := userconfig.Load()
	require.NoError(t, err)
	assert.Equal(t, "carla", uc.Server(env.api.URL).LastUsername)
	assert.Empty(t, uc.Server(env.api.URL).LastLocation)
}
