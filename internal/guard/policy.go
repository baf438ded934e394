package guard

import (
	_ "embed"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pilipi-dev/pilipi/internal/models"
)

//go:embed routes.yaml
var defaultPolicyYAML []byte

// Requirement is what a route demands of the session
type Requirement string

const (
	RequirePublic        Requirement = "public"
	RequirePublicOnly    Requirement = "public-only"
	RequireAuthenticated Requirement = "authenticated"
	RequireClient        Requirement = "client"
	RequireProvider      Requirement = "provider"
	RequireMaster        Requirement = "master"
	RequireLanding       Requirement = "landing"
)

func (r Requirement) valid() bool {
	switch r {
	case RequirePublic, RequirePublicOnly, RequireAuthenticated,
		RequireClient, RequireProvider, RequireMaster, RequireLanding:
		return true
	}
	return false
}

// Protected reports whether the route needs a logged in user
func (r Requirement) Protected() bool {
	switch r {
	case RequireAuthenticated, RequireClient, RequireProvider, RequireMaster:
		return true
	}
	return false
}

// defaultView is the views key used when no role-specific view exists
const defaultView = "*"

// Route is one entry of the policy table
type Route struct {
	Path   string            `yaml:"path" json:"path"`
	Access Requirement       `yaml:"access" json:"access"`
	Views  map[string]string `yaml:"views,omitempty" json:"views,omitempty"`

	segments []string
	static   int
}

// View returns the view rendered for role
func (r *Route) View(role models.UserType) string {
	if v, ok := r.Views[string(role)]; ok {
		return v
	}
	return r.Views[defaultView]
}

// match returns the path parameters when segs matches the route
func (r *Route) match(segs []string) (map[string]string, bool) {
	if len(segs) != len(r.segments) {
		return nil, false
	}
	var params map[string]string
	for i, pat := range r.segments {
		if name, ok := strings.CutPrefix(pat, ":"); ok {
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = segs[i]
			continue
		}
		if pat != segs[i] {
			return nil, false
		}
	}
	return params, true
}

// Policy is the static route table
type Policy struct {
	Login      string  `yaml:"login"`
	MasterArea string  `yaml:"master_area"`
	Landing    string  `yaml:"landing"`
	Routes     []Route `yaml:"routes"`
}

// DefaultPolicy returns the built-in route table
func DefaultPolicy() (*Policy, error) {
	return ParsePolicy(defaultPolicyYAML)
}

// ParsePolicy decodes and validates a YAML route table
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse route policy: %w", err)
	}
	if err := p.prepare(); err != nil {
		return nil, fmt.Errorf("invalid route policy: %w", err)
	}
	return &p, nil
}

func (p *Policy) prepare() error {
	seen := make(map[string]bool, len(p.Routes))
	for i := range p.Routes {
		r := &p.Routes[i]
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("route %q must start with /", r.Path)
		}
		if !r.Access.valid() {
			return fmt.Errorf("route %s: unknown access %q", r.Path, r.Access)
		}
		if r.Access != RequireLanding && r.Views[defaultView] == "" {
			return fmt.Errorf("route %s: missing default view", r.Path)
		}

		r.segments = splitPath(r.Path)
		r.static = 0
		for _, s := range r.segments {
			if !strings.HasPrefix(s, ":") {
				r.static++
			}
		}

		key := normalizePattern(r.segments)
		if seen[key] {
			return fmt.Errorf("route %s declared twice", r.Path)
		}
		seen[key] = true
	}

	for name, target := range map[string]string{"login": p.Login, "master_area": p.MasterArea, "landing": p.Landing} {
		if target == "" {
			return fmt.Errorf("%s is not set", name)
		}
		if _, _, ok := p.Match(target); !ok {
			return fmt.Errorf("%s %s is not a declared route", name, target)
		}
	}

	if r, _, _ := p.Match(p.MasterArea); r.Access != RequireMaster {
		return fmt.Errorf("master_area %s must require master", p.MasterArea)
	}
	return nil
}

// Match finds the route for a navigated location (query and fragment are
// ignored). Static segments win over parameters, so /requests/new is not
// read as /requests/:id.
func (p *Policy) Match(location string) (*Route, map[string]string, bool) {
	segs := splitPath(location)

	var (
		best       *Route
		bestParams map[string]string
	)
	for i := range p.Routes {
		r := &p.Routes[i]
		params, ok := r.match(segs)
		if !ok {
			continue
		}
		if best == nil || r.static > best.static {
			best, bestParams = r, params
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best, bestParams, true
}

// LandingFor returns where a logged in user of role lands
func (p *Policy) LandingFor(role models.UserType) string {
	if role == models.UserTypeMaster {
		return p.MasterArea
	}
	return p.Landing
}

// Sorted returns the routes ordered by path, for listing
func (p *Policy) Sorted() []Route {
	out := make([]Route, len(p.Routes))
	copy(out, p.Routes)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// CleanPath strips query, fragment and trailing slash from a location
func CleanPath(location string) string {
	if u, err := url.Parse(location); err == nil {
		location = u.Path
	}
	segs := splitPath(location)
	return "/" + strings.Join(segs, "/")
}

func splitPath(p string) []string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func normalizePattern(segs []string) string {
	out := make([]string, len(segs))
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			s = ":"
		}
		out[i] = s
	}
	return "/" + strings.Join(out, "/")
}
