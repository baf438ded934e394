package commands

import (
	"github.com/spf13/cobra"

	"github.com/pilipi-dev/pilipi/internal/cli/userconfig"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the current session and forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd, o)
		},
	}

	cmd.Flags().StringVar(&o.serverAlias, "server", "", "Server alias from pilipi.json")

	return cmd
}

func runLogout(cmd *cobra.Command, o *cmdOptions) error {
	a, release, err := openApp(cmd.Context(), o)
	if err != nil {
		return err
	}
	defer release()

	wasAuthenticated := a.Store.Snapshot().IsAuthenticated()

	// Logout always succeeds locally; a failed remote call is only logged
	res := a.Manager.Logout(cmd.Context())
	a.Nav.Navigate(a.Guard.Policy().Login)
	o.remember(a, func(serverURL string) error {
		return userconfig.RememberLocation(serverURL, "")
	})

	if !wasAuthenticated {
		o.printf("Not logged in.\n")
		return nil
	}
	o.printf("✓ %s\n", res.Message)
	return nil
}
