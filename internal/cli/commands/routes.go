package commands

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pilipi-dev/pilipi/internal/guard"
)

// NewRoutesCmd creates the routes command
func NewRoutesCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)

	return &cobra.Command{
		Use:   "routes",
		Short: "List every route and who may see it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(o)
		},
	}
}

func runRoutes(o *cmdOptions) error {
	policy, err := guard.DefaultPolicy()
	if err != nil {
		return err
	}
	if o.app != nil {
		policy = o.app.Guard.Policy()
	}

	w := tabwriter.NewWriter(o.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PATH\tACCESS\tVIEW")
	for _, r := range policy.Sorted() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Path, r.Access, formatViews(r.Views))
	}
	return w.Flush()
}

// formatViews lists per-role views, the default ("*") first
func formatViews(views map[string]string) string {
	if len(views) == 0 {
		return "-"
	}
	if len(views) == 1 {
		for _, v := range views {
			return v
		}
	}

	roles := make([]string, 0, len(views))
	for role := range views {
		if role != "*" {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)

	var parts []string
	if v, ok := views["*"]; ok {
		parts = append(parts, v)
	}
	for _, role := range roles {
		parts = append(parts, role+": "+views[role])
	}
	return strings.Join(parts, ", ")
}
