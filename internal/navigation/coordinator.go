// Package navigation keeps track of where the user is and moves them when
// the guard or the gateway says so.
package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pilipi-dev/pilipi/internal/cli/client"
	"github.com/pilipi-dev/pilipi/internal/guard"
)

// maxRedirects bounds redirect chains; the default policy never needs more than two
const maxRedirects = 5

// historySize is how many decisions History keeps
const historySize = 32

// Renderer shows the outcome of a navigation
type Renderer interface {
	Render(d guard.Decision)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(d guard.Decision)

// Render calls f(d)
func (f RendererFunc) Render(d guard.Decision) { f(d) }

// Entry is one recorded navigation step
type Entry struct {
	Decision guard.Decision `json:"decision"`
	Cause    string         `json:"cause"`
	At       time.Time      `json:"at"`
}

// Navigation causes
const (
	CauseUser          = "user"
	CauseRedirect      = "redirect"
	CauseSessionChange = "session-change"
	CauseInvalidated   = "session-invalidated"
)

// Coordinator owns the current location
type Coordinator struct {
	guard    *guard.Guard
	src      guard.SnapshotSource
	renderer Renderer
	logger   zerolog.Logger

	mu       sync.Mutex
	location string
	history  []Entry
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the coordinator logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithRenderer sets where decisions are shown
func WithRenderer(r Renderer) Option {
	return func(c *Coordinator) {
		c.renderer = r
	}
}

// WithStart sets the initial location (default "/")
func WithStart(location string) Option {
	return func(c *Coordinator) {
		c.location = guard.CleanPath(location)
	}
}

// New creates a coordinator that evaluates navigations with g against src
func New(g *guard.Guard, src guard.SnapshotSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		guard:    g,
		src:      src,
		renderer: RendererFunc(func(guard.Decision) {}),
		logger:   zerolog.Nop(),
		location: "/",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the current location
func (c *Coordinator) Location() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// History returns the most recent navigation steps, oldest first
func (c *Coordinator) History() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.history))
	copy(out, c.history)
	return out
}

// Navigate moves to location, following redirects, and returns the final
// decision. Every step is rendered.
func (c *Coordinator) Navigate(location string) guard.Decision {
	return c.navigate(location, CauseUser, nil)
}

// Trace is Navigate returning every hop, the final decision last
func (c *Coordinator) Trace(location string) []guard.Decision {
	var hops []guard.Decision
	c.navigate(location, CauseUser, func(d guard.Decision) {
		hops = append(hops, d)
	})
	return hops
}

func (c *Coordinator) navigate(location, cause string, visit func(guard.Decision)) guard.Decision {
	var d guard.Decision
	for hop := 0; ; hop++ {
		d = c.guard.Evaluate(c.src, location)
		c.step(d, cause)
		if visit != nil {
			visit(d)
		}

		if d.Outcome != guard.OutcomeRedirect {
			return d
		}
		if hop >= maxRedirects {
			c.logger.Error().Str("path", d.Path).Str("location", d.Location).Msg("redirect loop")
			return d
		}
		location, cause = d.Location, CauseRedirect
	}
}

// step records d as the current location and renders it
func (c *Coordinator) step(d guard.Decision, cause string) {
	c.mu.Lock()
	c.location = d.Path
	c.history = append(c.history, Entry{Decision: d, Cause: cause, At: time.Now()})
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	c.mu.Unlock()

	c.logger.Debug().
		Str("path", d.Path).
		Str("outcome", string(d.Outcome)).
		Str("cause", cause).
		Msg("navigation")

	c.renderer.Render(d)
}

// HandleInvalidation sends the user to the login entry point after the
// gateway ended the session. Already being there is a no-op, so repeated
// 401s cannot loop.
func (c *Coordinator) HandleInvalidation(ev client.InvalidationEvent) {
	login := c.guard.Policy().Login
	if c.Location() == login {
		return
	}
	c.logger.Info().
		Str("request_id", ev.RequestID).
		Str("path", ev.Path).
		Msg("session invalidated, returning to login")
	c.navigate(login, CauseInvalidated, nil)
}

// Run re-evaluates the current location on every session change until ctx
// is done. A redirect decision is followed like any other navigation.
func (c *Coordinator) Run(ctx context.Context) {
	c.guard.Watch(ctx, c.src, c.Location, func(d guard.Decision) {
		c.step(d, CauseSessionChange)
		if d.Outcome == guard.OutcomeRedirect {
			c.navigate(d.Location, CauseRedirect, nil)
		}
	})
}
