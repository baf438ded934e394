package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pilipi-dev/pilipi/internal/cli/client"
	"github.com/pilipi-dev/pilipi/internal/models"
)

// User-facing fallbacks, used when the server gives no usable message
const (
	MsgRestoreFailed  = "Your session could not be restored. Please log in again."
	MsgLoginFailed    = "Could not log in."
	MsgRegisterFailed = "Could not complete registration."
	MsgProfileFailed  = "Could not update profile."
	MsgPasswordFailed = "Could not change password."
	MsgRefreshFailed  = "Could not refresh profile."
	MsgNotSignedIn    = "You are not logged in."
	MsgSuperseded     = "The session changed while this request was in flight."
	MsgStorageFailed  = "Could not store your credentials on this device."
	MsgNoToken        = "The server did not return an access token."

	MsgLoginOK    = "Logged in successfully."
	MsgRegisterOK = "Registration complete. Log in to continue."
	MsgLogoutOK   = "Logged out successfully."
	MsgProfileOK  = "Profile updated successfully."
	MsgPasswordOK = "Password changed successfully."
)

// remoteLogoutTimeout bounds the best-effort backend logout call
const remoteLogoutTimeout = 5 * time.Second

var errUnchanged = errors.New("session unchanged")

// API is the subset of the backend the manager talks to
type API interface {
	Login(ctx context.Context, creds models.Credentials) (*client.LoginResponse, error)
	Register(ctx context.Context, reg models.Registration) error
	GetProfile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, change models.PasswordChange) error
	Logout(ctx context.Context, token string) error
}

// CredentialStore is the durable credential slot
type CredentialStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Result is the outcome of a manager operation, meant to drive UI feedback
type Result struct {
	Success bool
	Message string
	// PasswordIsTemporary is set by Login when the backend requires the
	// user to change their password before doing anything else.
	PasswordIsTemporary bool
}

func ok(msg string) Result     { return Result{Success: true, Message: msg} }
func failed(msg string) Result { return Result{Success: false, Message: msg} }

// Manager orchestrates login, registration, logout and profile changes.
// It is the only writer of its Store and of the durable credential.
type Manager struct {
	store   *Store
	api     API
	durable CredentialStore
	logger  zerolog.Logger

	initOnce   sync.Once
	initResult Result
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager logger
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager over store
func NewManager(store *Store, api API, durable CredentialStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		api:     api,
		durable: durable,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the session for reading and subscribing
func (m *Manager) Store() *Store {
	return m.store
}

// Snapshot is shorthand for m.Store().Snapshot()
func (m *Manager) Snapshot() Snapshot {
	return m.store.Snapshot()
}

// Credential implements client.Credentials
func (m *Manager) Credential() string {
	return m.store.Credential()
}

// ClearCredential implements client.Credentials. The gateway calls it when
// an authenticated call is rejected; the session ends immediately.
func (m *Manager) ClearCredential() error {
	var durableErr error
	_, err := m.store.commit(anyGeneration, func(next *state) error {
		if isEmpty(next) {
			return errUnchanged
		}
		durableErr = m.durable.Clear()
		clearState(next)
		return nil
	})
	if err != nil {
		return err
	}
	if durableErr == nil {
		m.logger.Info().Msg("session invalidated by server")
	}
	return durableErr
}

// Initialize hydrates the session from the durable credential. It runs
// once; later calls return the first result.
func (m *Manager) Initialize(ctx context.Context) Result {
	m.initOnce.Do(func() {
		m.initResult = m.hydrate(ctx)
	})
	return m.initResult
}

func (m *Manager) hydrate(ctx context.Context) Result {
	// A logout committed while the slot is being read must win
	gen := m.store.generation()

	token, err := m.durable.Load()
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not read stored credential")
		token = ""
	}

	if token == "" {
		m.finishLoading()
		return ok("")
	}

	gen, seeded := m.store.seed(gen, token)
	if !seeded {
		m.finishLoading()
		return failed(MsgSuperseded)
	}

	user, err := m.api.GetProfile(ctx)
	if err != nil {
		if client.IsUnauthorized(err) {
			m.logger.Info().Err(err).Msg("stored credential rejected, clearing")
		} else {
			m.logger.Warn().Err(err).Msg("could not verify stored credential, clearing")
		}
		applied, cerr := m.store.commit(gen, func(next *state) error {
			if derr := m.durable.Clear(); derr != nil {
				m.logger.Error().Err(derr).Msg("failed to clear stored credential")
			}
			clearState(next)
			return nil
		})
		if cerr != nil || !applied {
			m.finishLoading()
		}
		return failed(client.Message(err, MsgRestoreFailed))
	}

	applied, _ := m.store.commit(gen, func(next *state) error {
		next.snap = Snapshot{Token: token, User: user}
		return nil
	})
	if !applied {
		m.finishLoading()
		return failed(MsgSuperseded)
	}

	m.logger.Debug().Str("user_type", string(user.UserType)).Msg("session restored")
	return ok("")
}

// finishLoading guarantees loading=false without touching anything else
func (m *Manager) finishLoading() {
	_, _ = m.store.commit(anyGeneration, func(next *state) error {
		if !next.snap.Loading {
			return errUnchanged
		}
		next.snap.Loading = false
		if next.snap.User == nil {
			next.snap.Token = ""
		}
		return nil
	})
}

// Login exchanges credentials for a session. On failure the session is
// left exactly as it was.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) Result {
	if err := models.Validate(creds); err != nil {
		return failed(err.Error())
	}

	gen := m.store.generation()

	resp, err := m.api.Login(ctx, creds)
	if err != nil {
		m.logger.Debug().Err(err).Msg("login rejected")
		return failed(client.Message(err, MsgLoginFailed))
	}

	token := resp.BearerToken()
	if token == "" {
		return failed(MsgNoToken)
	}

	user := resp.User
	applied, err := m.store.commit(gen, func(next *state) error {
		if err := m.durable.Save(token); err != nil {
			return err
		}
		next.credential = token
		next.snap = Snapshot{Token: token, User: &user}
		return nil
	})
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to persist credential")
		return failed(MsgStorageFailed)
	}
	if !applied {
		return failed(MsgSuperseded)
	}

	m.logger.Info().Str("user_type", string(user.UserType)).Msg("logged in")
	return Result{Success: true, Message: MsgLoginOK, PasswordIsTemporary: resp.PasswordIsTemporary}
}

// Register creates an account. It does not log the new account in.
func (m *Manager) Register(ctx context.Context, reg models.Registration) Result {
	if reg.UserType != models.UserTypeProvider {
		reg.ServiceCategories = nil
	}
	if err := models.Validate(reg); err != nil {
		return failed(err.Error())
	}

	if err := m.api.Register(ctx, reg); err != nil {
		m.logger.Debug().Err(err).Msg("registration rejected")
		return failed(client.Message(err, MsgRegisterFailed))
	}

	m.logger.Info().Str("user_type", string(reg.UserType)).Msg("account registered")
	return ok(MsgRegisterOK)
}

// Logout clears the session locally and then tells the backend, best
// effort. It cannot fail and calling it twice is the same as calling it once.
func (m *Manager) Logout(ctx context.Context) Result {
	var token string
	_, err := m.store.commit(anyGeneration, func(next *state) error {
		if isEmpty(next) {
			return errUnchanged
		}
		token = next.credential
		if token == "" {
			token = next.snap.Token
		}
		if derr := m.durable.Clear(); derr != nil {
			m.logger.Error().Err(derr).Msg("failed to clear stored credential")
		}
		clearState(next)
		return nil
	})
	if err != nil {
		m.logger.Error().Err(err).Msg("logout commit failed")
	}

	if token != "" {
		rctx, cancel := context.WithTimeout(ctx, remoteLogoutTimeout)
		defer cancel()
		if err := m.api.Logout(rctx, token); err != nil {
			m.logger.Debug().Err(err).Msg("remote logout failed")
		}
	}

	return ok(MsgLogoutOK)
}

// UpdateProfile applies update and replaces the in-memory user with the
// profile the backend returns.
func (m *Manager) UpdateProfile(ctx context.Context, update models.ProfileUpdate) Result {
	if !m.store.Snapshot().IsAuthenticated() {
		return failed(MsgNotSignedIn)
	}
	if update.IsEmpty() {
		return failed("Nothing to update.")
	}
	if err := models.Validate(update); err != nil {
		return failed(err.Error())
	}

	gen := m.store.generation()

	user, err := m.api.UpdateProfile(ctx, update)
	if err != nil {
		return failed(client.Message(err, MsgProfileFailed))
	}

	if !m.replaceUser(gen, user) {
		return failed(MsgSuperseded)
	}
	return ok(MsgProfileOK)
}

// ChangePassword changes the password of the logged in user. The session
// itself is not modified.
func (m *Manager) ChangePassword(ctx context.Context, change models.PasswordChange) Result {
	if !m.store.Snapshot().IsAuthenticated() {
		return failed(MsgNotSignedIn)
	}
	if err := models.Validate(change); err != nil {
		return failed(err.Error())
	}

	if err := m.api.ChangePassword(ctx, change); err != nil {
		return failed(client.Message(err, MsgPasswordFailed))
	}
	return ok(MsgPasswordOK)
}

// Refresh re-fetches the profile of an authenticated session. A 401 here
// ends the session through the gateway like any other authenticated call.
func (m *Manager) Refresh(ctx context.Context) Result {
	if !m.store.Snapshot().IsAuthenticated() {
		return failed(MsgNotSignedIn)
	}

	gen := m.store.generation()

	user, err := m.api.GetProfile(ctx)
	if err != nil {
		return failed(client.Message(err, MsgRefreshFailed))
	}

	if !m.replaceUser(gen, user) {
		return failed(MsgSuperseded)
	}
	return ok("")
}

// replaceUser swaps only the user, keeping token and credential
func (m *Manager) replaceUser(gen uint64, user *models.User) bool {
	applied, _ := m.store.commit(gen, func(next *state) error {
		if !next.snap.IsAuthenticated() {
			return errors.New("session ended")
		}
		next.snap.User = user
		return nil
	})
	return applied
}

func isEmpty(st *state) bool {
	return st.credential == "" && st.snap.Token == "" && st.snap.User == nil && !st.snap.Loading
}

func clearState(st *state) {
	st.credential = ""
	st.snap = Snapshot{}
}
