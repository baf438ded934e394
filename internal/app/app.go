// Package app wires the gateway, session, guard and navigation together for
// one API server.
package app

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pilipi-dev/pilipi/internal/cli/auth"
	"github.com/pilipi-dev/pilipi/internal/cli/client"
	"github.com/pilipi-dev/pilipi/internal/config"
	"github.com/pilipi-dev/pilipi/internal/guard"
	"github.com/pilipi-dev/pilipi/internal/navigation"
	"github.com/pilipi-dev/pilipi/internal/session"
)

// App is a fully wired client session against one API server
type App struct {
	ServerURL string
	Client    *client.Client
	Store     *session.Store
	Manager   *session.Manager
	Guard     *guard.Guard
	Nav       *navigation.Coordinator
	Slot      *auth.Slot

	closers []func() error
}

type options struct {
	tokenStore auth.TokenStore
	httpClient *http.Client
	policy     *guard.Policy
	renderer   navigation.Renderer
	start      string
	logger     zerolog.Logger
}

// Option configures New
type Option func(*options)

// WithTokenStore overrides the credential backend chosen by config
func WithTokenStore(ts auth.TokenStore) Option {
	return func(o *options) {
		o.tokenStore = ts
	}
}

// WithHTTPClient sets the HTTP client used by the gateway
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithPolicy replaces the built-in route policy
func WithPolicy(p *guard.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithRenderer sets where navigation decisions are shown
func WithRenderer(r navigation.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

// WithStart sets the initial location
func WithStart(location string) Option {
	return func(o *options) {
		o.start = location
	}
}

// WithLogger sets the logger handed to every component
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New wires an App for serverURL
func New(cfg *config.Config, serverURL string, opts ...Option) (*App, error) {
	o := options{logger: zerolog.Nop(), start: "/"}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{ServerURL: serverURL}

	if o.tokenStore == nil {
		ts, closer, err := OpenTokenStore(cfg)
		if err != nil {
			return nil, err
		}
		o.tokenStore = ts
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	if o.policy == nil {
		p, err := guard.DefaultPolicy()
		if err != nil {
			return nil, err
		}
		o.policy = p
	}

	a.Client = client.New(serverURL,
		client.WithTimeout(cfg.API.Timeout),
		client.WithLogger(o.logger.With().Str("component", "gateway").Logger()),
	)
	if o.httpClient != nil {
		a.Client.SetHTTPClient(o.httpClient)
	}

	a.Slot = auth.NewSlot(o.tokenStore, serverURL)
	a.Store = session.NewStore()
	a.Manager = session.NewManager(a.Store, a.Client, a.Slot,
		session.WithLogger(o.logger.With().Str("component", "session").Logger()),
	)
	a.Client.SetCredentials(a.Manager)

	a.Guard = guard.New(o.policy, guard.WithLogger(o.logger.With().Str("component", "guard").Logger()))

	navOpts := []navigation.Option{
		navigation.WithStart(o.start),
		navigation.WithLogger(o.logger.With().Str("component", "navigation").Logger()),
	}
	if o.renderer != nil {
		navOpts = append(navOpts, navigation.WithRenderer(o.renderer))
	}
	a.Nav = navigation.New(a.Guard, a.Store, navOpts...)

	remove := a.Client.OnSessionInvalidated(a.Nav.HandleInvalidation)
	a.closers = append(a.closers, func() error {
		remove()
		return nil
	})

	return a, nil
}

// OpenTokenStore returns the credential backend selected by cfg and, for
// backends holding resources, a func to release them.
func OpenTokenStore(cfg *config.Config) (auth.TokenStore, func() error, error) {
	switch cfg.Credentials.Backend {
	case config.CredentialBackendSQLite:
		path := cfg.Credentials.DBPath
		if path == "" {
			p, err := auth.DefaultDBPath()
			if err != nil {
				return nil, nil, err
			}
			path = p
		}
		store, err := auth.OpenDBTokenStore(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.CredentialBackendKeyring, "":
		return auth.NewKeyringTokenStore(cfg.Credentials.KeyringService), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential backend %q", cfg.Credentials.Backend)
	}
}

// Close releases the credential backend and detaches listeners
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
