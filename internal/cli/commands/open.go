package commands

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pilipi-dev/pilipi/internal/cli/userconfig"
	"github.com/pilipi-dev/pilipi/internal/guard"
)

// NewOpenCmd creates the open command
func NewOpenCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)

	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Show what the current session sees at a path",
		Long: `Show what the current session sees at a path, following redirects.

Examples:
  $ pilipi open /dashboard
  $ pilipi open /requests/42/edit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd, o, args[0])
		},
	}

	cmd.Flags().StringVar(&o.serverAlias, "server", "", "Server alias from pilipi.json")

	return cmd
}

func runOpen(cmd *cobra.Command, o *cmdOptions, location string) error {
	a, release, err := openApp(cmd.Context(), o)
	if err != nil {
		return err
	}
	defer release()

	hops := a.Nav.Trace(location)
	for _, d := range hops {
		o.printf("%s\n", describeDecision(d))
	}

	policy := a.Guard.Policy()
	first, last := hops[0], hops[len(hops)-1]
	if route, _, ok := policy.Match(first.Path); ok && route.Access.Protected() &&
		first.Outcome == guard.OutcomeRedirect && first.Location == policy.Login {
		o.printf("\nRun 'pilipi login' to see %s.\n", first.Path)
	}

	// The next invocation starts where a signed in user ended up
	if last.Outcome == guard.OutcomeRender && a.Store.Snapshot().IsAuthenticated() {
		o.remember(a, func(serverURL string) error {
			return userconfig.RememberLocation(serverURL, last.Path)
		})
	}
	return nil
}

// describeDecision renders one navigation step as a single line
func describeDecision(d guard.Decision) string {
	var b strings.Builder
	b.WriteString(d.Path)
	b.WriteString("  ")

	switch d.Outcome {
	case guard.OutcomeRedirect:
		b.WriteString("→ " + d.Location)
	case guard.OutcomeDenied:
		b.WriteString("✗ " + d.Message)
	case guard.OutcomePending:
		b.WriteString("… loading")
	case guard.OutcomeNotFound:
		b.WriteString("✗ page not found")
	default:
		b.WriteString("✓ " + d.View)
	}

	if len(d.Params) > 0 {
		keys := make([]string, 0, len(d.Params))
		for k := range d.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+d.Params[k])
		}
		b.WriteString(" (" + strings.Join(parts, ", ") + ")")
	}
	return b.String()
}
