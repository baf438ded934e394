package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilipi-dev/pilipi/internal/cli/config"
	"github.com/pilipi-dev/pilipi/internal/cli/serverselect"
	"github.com/pilipi-dev/pilipi/internal/cli/userconfig"
	appconfig "github.com/pilipi-dev/pilipi/internal/config"
)

func writeProjectConfig(t *testing.T, dir string, servers ...config.Server) {
	t.Helper()
	require.NoError(t, config.Save(filepath.Join(dir, config.ConfigFileName), &config.Config{Servers: servers}))
}

func TestSelectServer_ByAlias(t *testing.T) {
	dir := inTempDir(t)
	writeProjectConfig(t, dir,
		config.Server{URL: "https://api.pilipi.example/api", Alias: "production"},
		config.Server{URL: "http://127.0.0.1:8000/api/", Alias: "local"},
	)
	var out bytes.Buffer

	require.NoError(t, runSelectServer(&cmdOptions{out: &out}, "local"))

	assert.Contains(t, out.String(), "Selected server: local (http://127.0.0.1:8000/api/)")
	selected, err := userconfig.GetSelectedServer()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000/api", selected)
}

func TestSelectServer_Unknown(t *testing.T) {
	dir := inTempDir(t)
	writeProjectConfig(t, dir, config.Server{URL: "https://api.pilipi.example/api", Alias: "production"})

	err := runSelectServer(&cmdOptions{out: &bytes.Buffer{}}, "staging")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "'staging' not found")
}

func TestSelectServer_NoConfig(t *testing.T) {
	inTempDir(t)

	err := runSelectServer(&cmdOptions{out: &bytes.Buffer{}}, "production")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Run 'pilipi init'")
}

func TestResolveServer_EnvironmentWins(t *testing.T) {
	inTempDir(t)
	cfg := &appconfig.Config{API: appconfig.APIConfig{URL: "http://10.0.0.5:8000/api"}}

	choice, err := resolveServer(cfg, "")

	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000/api", choice.Server.URL)
	assert.Equal(t, serverselect.SourceEnv, choice.Source)

	cfg.API.URL = "ftp://10.0.0.5"
	_, err = resolveServer(cfg, "")
	assert.Error(t, err)
}

func TestResolveServer_SingleServerFromProject(t *testing.T) {
	dir := inTempDir(t)
	writeProjectConfig(t, dir, config.Server{URL: "https://api.pilipi.example/api/", Alias: "production"})

	choice, err := resolveServer(&appconfig.Config{}, "")

	require.NoError(t, err)
	assert.Equal(t, "production", choice.Server.Alias)
	assert.Equal(t, "https://api.pilipi.example/api", choice.Server.Key())
	assert.Equal(t, serverselect.SourceOnly, choice.Source)
}

func TestResolveServer_CarriesRememberedState(t *testing.T) {
	dir := inTempDir(t)
	writeProjectConfig(t, dir, config.Server{URL: "https://api.pilipi.example/api", Alias: "production"})
	require.NoError(t, userconfig.RememberUsername("https://api.pilipi.example/api", "carla"))
	require.NoError(t, userconfig.RememberLocation("https://api.pilipi.example/api", "/requests/4"))

	choice, err := resolveServer(&appconfig.Config{}, "production")

	require.NoError(t, err)
	assert.Equal(t, userconfig.ServerState{LastUsername: "carla", LastLocation: "/requests/4"}, choice.State)
}

func TestSelectServer_ShowsLastUsername(t *testing.T) {
	dir := inTempDir(t)
	writeProjectConfig(t, dir, config.Server{URL: "https://api.pilipi.example/api", Alias: "production"})
	require.NoError(t, userconfig.RememberUsername("https://api.pilipi.example/api/", "paulo"))
	var out bytes.Buffer

	require.NoError(t, runSelectServer(&cmdOptions{out: &out}, "https://api.pilipi.example/api"))

	assert.Contains(t, out.String(), "Last logged in as paulo")
}

func TestOpenApp_LoadsRememberedStateForInjectedApp(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, userconfig.RememberUsername(env.api.URL, "carla"))
	o := &cmdOptions{app: env.newApp(t), out: &bytes.Buffer{}}

	_, release, err := openApp(context.Background(), o)
	require.NoError(t, err)
	release()

	assert.Equal(t, "carla", o.remembered.LastUsername)
}

func TestOpenApp_UsesInjectedApp(t *testing.T) {
	env := newTestEnv(t)
	env.signedIn(t, "carla")
	a := env.newApp(t)
	var out bytes.Buffer

	got, release, err := openApp(context.Background(), &cmdOptions{app: a, out: &out})
	require.NoError(t, err)
	release()

	assert.Same(t, a, got)
	assert.True(t, got.Store.Snapshot().IsAuthenticated())
	assert.Empty(t, out.String())
}
