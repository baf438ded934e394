package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pilipi-dev/pilipi/internal/app"
	"github.com/pilipi-dev/pilipi/internal/cli/config"
	"github.com/pilipi-dev/pilipi/internal/cli/serverselect"
	"github.com/pilipi-dev/pilipi/internal/cli/userconfig"
	appconfig "github.com/pilipi-dev/pilipi/internal/config"
	"github.com/pilipi-dev/pilipi/internal/logger"
	"github.com/pilipi-dev/pilipi/internal/session"
)

// ErrNotAuthenticated is returned by commands that need a session when none
// could be restored
var ErrNotAuthenticated = errors.New("not logged in. Run 'pilipi login' first")

// cmdOptions carries what a command needs from the outside world. Tests
// inject a wired App and capture output; the real binary builds both.
type cmdOptions struct {
	app         *app.App
	config      *appconfig.Config
	out         io.Writer
	serverAlias string
	// remembered is the device state of the resolved server
	remembered userconfig.ServerState
}

// Option configures a command
type Option func(*cmdOptions)

// WithApp makes the command use a, skipping config and server resolution
func WithApp(a *app.App) Option {
	return func(o *cmdOptions) {
		o.app = a
	}
}

// WithConfig replaces the environment-derived process configuration
func WithConfig(cfg *appconfig.Config) Option {
	return func(o *cmdOptions) {
		o.config = cfg
	}
}

// WithOutput redirects command output
func WithOutput(w io.Writer) Option {
	return func(o *cmdOptions) {
		o.out = w
	}
}

func newCmdOptions(opts []Option) *cmdOptions {
	o := &cmdOptions{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *cmdOptions) printf(format string, args ...any) {
	fmt.Fprintf(o.out, format, args...)
}

// loadConfig returns the process configuration and sets up logging from it
func (o *cmdOptions) loadConfig(ctx context.Context) (*appconfig.Config, error) {
	if o.config != nil {
		return o.config, nil
	}
	cfg, err := appconfig.Load(ctx)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	o.config = cfg
	return cfg, nil
}

// resolveServer picks the API server: PILIPI_API_URL first, then pilipi.json
func resolveServer(cfg *appconfig.Config, alias string) (*serverselect.Choice, error) {
	if cfg.API.URL != "" {
		server := &config.Server{URL: cfg.API.URL, Alias: "env"}
		if err := server.Validate(); err != nil {
			return nil, fmt.Errorf("PILIPI_API_URL: %w", err)
		}
		state, err := userconfig.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
		return &serverselect.Choice{Server: server, Source: serverselect.SourceEnv, State: state.Server(server.Key())}, nil
	}

	projectConfig, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'pilipi init' to create a configuration file", err)
	}

	choice, err := serverselect.Resolve(projectConfig, alias)
	if err != nil {
		return nil, err
	}

	if err := choice.Server.Validate(); err != nil {
		return nil, err
	}
	return choice, nil
}

// openApp returns the App for this invocation with its session restored.
// A fresh App starts at the location remembered for its server. The
// returned func releases it.
func openApp(ctx context.Context, o *cmdOptions) (*app.App, func(), error) {
	a := o.app
	release := func() {}

	if a == nil {
		cfg, err := o.loadConfig(ctx)
		if err != nil {
			return nil, nil, err
		}
		log := logger.GetLogger()

		choice, err := resolveServer(cfg, o.serverAlias)
		if err != nil {
			return nil, nil, err
		}
		log.Debug().
			Str("server", choice.Server.Key()).
			Str("source", string(choice.Source)).
			Msg("server resolved")
		o.remembered = choice.State

		opts := []app.Option{app.WithLogger(log)}
		if choice.State.LastLocation != "" {
			opts = append(opts, app.WithStart(choice.State.LastLocation))
		}
		a, err = app.New(cfg, choice.Server.Key(), opts...)
		if err != nil {
			return nil, nil, err
		}
		release = func() {
			if err := a.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to release credential store")
			}
		}
	} else if uc, err := userconfig.Load(); err == nil {
		o.remembered = uc.Server(a.ServerURL)
	}

	if res := a.Manager.Initialize(ctx); !res.Success {
		o.printf("⚠ %s\n", res.Message)
	}

	return a, release, nil
}

// remember updates this device's state for a's server. Failing to write it
// never fails the command.
func (o *cmdOptions) remember(a *app.App, fn func(serverURL string) error) {
	if err := fn(a.ServerURL); err != nil {
		log := logger.GetLogger()
		log.Warn().Err(err).Msg("failed to update user config")
	}
}

// resultErr turns a failed session result into a command error
func resultErr(res session.Result) error {
	if res.Success {
		return nil
	}
	return errors.New(res.Message)
}
