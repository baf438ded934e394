// Package guard decides, for every navigation, whether the current session
// may see a view, must be sent elsewhere, or has to wait for the session to
// finish loading.
package guard

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pilipi-dev/pilipi/internal/models"
	"github.com/pilipi-dev/pilipi/internal/session"
)

// Outcome is the kind of a navigation decision
type Outcome string

const (
	// OutcomePending means the session is still loading; show a neutral indicator
	OutcomePending Outcome = "pending"
	// OutcomeRedirect means navigate to Decision.Location instead
	OutcomeRedirect Outcome = "redirect"
	// OutcomeDenied means stay on the location and show Decision.Message
	OutcomeDenied Outcome = "denied"
	// OutcomeRender means show Decision.View
	OutcomeRender Outcome = "render"
	// OutcomeNotFound means no route matches the location
	OutcomeNotFound Outcome = "not-found"
)

// Access-denied messages shown in place of the view
const (
	DeniedMaster   = "Access denied. This page is for master users only."
	DeniedClient   = "Access denied. This page is for clients only."
	DeniedProvider = "Access denied. This page is for service providers only."
)

// Decision is the result of evaluating one navigation
type Decision struct {
	Outcome  Outcome           `json:"outcome"`
	Path     string            `json:"path"`
	Location string            `json:"location,omitempty"`
	View     string            `json:"view,omitempty"`
	Message  string            `json:"message,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
	Access   Requirement       `json:"access,omitempty"`
}

// Guard evaluates navigations against a policy
type Guard struct {
	policy *Policy
	logger zerolog.Logger
}

// Option configures a Guard
type Option func(*Guard)

// WithLogger sets the guard logger
func WithLogger(l zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// New returns a guard over policy
func New(policy *Policy, opts ...Option) *Guard {
	g := &Guard{policy: policy, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the route table in use
func (g *Guard) Policy() *Policy {
	return g.policy
}

// Decide evaluates location for snap. It is a pure function of its inputs.
//
// Precedence: loading, then authentication, then master confinement, then
// role mismatch, then render.
func (g *Guard) Decide(snap session.Snapshot, location string) Decision {
	path := CleanPath(location)
	d := Decision{Path: path}

	if snap.Loading {
		d.Outcome = OutcomePending
		return d
	}

	route, params, ok := g.policy.Match(path)
	if !ok {
		d.Outcome = OutcomeNotFound
		d.View = "not-found"
		return d
	}
	d.Access = route.Access
	d.Params = params

	role := snap.Role()

	switch route.Access {
	case RequirePublic:
		return render(d, route, role)

	case RequirePublicOnly:
		if snap.IsAuthenticated() {
			return redirect(d, g.policy.LandingFor(role))
		}
		return render(d, route, role)

	case RequireLanding:
		if !snap.IsAuthenticated() {
			return redirect(d, g.policy.Login)
		}
		return redirect(d, g.policy.LandingFor(role))
	}

	if !snap.IsAuthenticated() {
		return redirect(d, g.policy.Login)
	}

	if snap.IsMaster() && route.Access != RequireMaster {
		return redirect(d, g.policy.MasterArea)
	}

	if msg := mismatch(route.Access, snap); msg != "" {
		d.Outcome = OutcomeDenied
		d.Message = msg
		return d
	}

	return render(d, route, role)
}

// mismatch returns the denial message when the session's role does not fit
func mismatch(access Requirement, snap session.Snapshot) string {
	switch {
	case access == RequireMaster && !snap.IsMaster():
		return DeniedMaster
	case access == RequireClient && !snap.IsClient():
		return DeniedClient
	case access == RequireProvider && !snap.IsProvider():
		return DeniedProvider
	}
	return ""
}

func render(d Decision, route *Route, role models.UserType) Decision {
	d.Outcome = OutcomeRender
	d.View = route.View(role)
	return d
}

func redirect(d Decision, location string) Decision {
	d.Outcome = OutcomeRedirect
	d.Location = location
	return d
}

// SnapshotSource is where the guard reads and follows the session from
type SnapshotSource interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
}

// Evaluate decides location against the current session of src
func (g *Guard) Evaluate(src SnapshotSource, location string) Decision {
	return g.Decide(src.Snapshot(), location)
}

// Watch re-evaluates the location returned by current on every session
// change and hands each decision to fn. It returns when ctx is done.
func (g *Guard) Watch(ctx context.Context, src SnapshotSource, current func() string, fn func(Decision)) {
	snaps, cancel := src.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			d := g.Decide(snap, current())
			g.logger.Debug().
				Str("path", d.Path).
				Str("outcome", string(d.Outcome)).
				Str("location", d.Location).
				Msg("route re-evaluated")
			fn(d)
		}
	}
}
