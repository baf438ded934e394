package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pilipi-dev/pilipi/internal/cli/auth"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd, o)
		},
	}

	cmd.Flags().StringVar(&o.serverAlias, "server", "", "Server alias from pilipi.json")

	return cmd
}

func runWhoami(cmd *cobra.Command, o *cmdOptions) error {
	a, release, err := openApp(cmd.Context(), o)
	if err != nil {
		return err
	}
	defer release()

	snap := a.Store.Snapshot()
	if !snap.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	u := snap.User
	o.printf("Server:   %s\n", a.ServerURL)
	o.printf("User:     %s (%s)\n", u.Username, u.FullName())
	o.printf("Email:    %s\n", u.Email)
	o.printf("Role:     %s\n", snap.Role().Label())
	if u.City != "" {
		o.printf("Location: %s/%s\n", u.City, u.State)
	}

	if last := o.remembered.LastLocation; last != "" {
		o.printf("Last view: %s\n", last)
	}

	// Opaque tokens carry no expiry to show
	if info, err := auth.Inspect(snap.Token); err == nil && !info.ExpiresAt.IsZero() {
		if info.Expired(time.Now()) {
			o.printf("Expires:  expired at %s\n", info.ExpiresAt.Local().Format(time.RFC1123))
		} else {
			o.printf("Expires:  %s (in %s)\n", info.ExpiresAt.Local().Format(time.RFC1123),
				time.Until(info.ExpiresAt).Round(time.Second))
		}
	}

	return nil
}
