package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pilipi-dev/pilipi/internal/cli/userconfig"
	"github.com/pilipi-dev/pilipi/internal/guard"
	"github.com/pilipi-dev/pilipi/internal/models"
)

// NewLoginCmd creates the login command
func NewLoginCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the marketplace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, o, username, password)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (or set PILIPI_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set PILIPI_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&o.serverAlias, "server", "", "Server alias from pilipi.json")

	return cmd
}

func runLogin(cmd *cobra.Command, o *cmdOptions, username, password string) error {
	// Check for environment variables (useful for CI/CD)
	if username == "" {
		username = os.Getenv("PILIPI_USERNAME")
	}
	if password == "" {
		password = os.Getenv("PILIPI_PASSWORD")
	}

	a, release, err := openApp(cmd.Context(), o)
	if err != nil {
		return err
	}
	defer release()

	// The login view is public-only; the guard turns it away once signed in
	snap := a.Store.Snapshot()
	if d := a.Guard.Decide(snap, a.Guard.Policy().Login); d.Outcome == guard.OutcomeRedirect {
		o.printf("Already logged in as %s (%s). Run 'pilipi logout' first.\n", snap.User.Username, snap.Role().Label())
		return nil
	}

	if username == "" {
		username = o.remembered.LastUsername
	}
	if username == "" {
		return fmt.Errorf("username is required (use --username flag or PILIPI_USERNAME env var)")
	}

	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or PILIPI_PASSWORD env var)")
		}
		password, err = readPassword(o, "Password: ")
		if err != nil {
			return err
		}
	}

	o.printf("Logging in to %s as %s...\n", a.ServerURL, username)

	res := a.Manager.Login(cmd.Context(), models.Credentials{Username: username, Password: password})
	if err := resultErr(res); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	o.remember(a, func(serverURL string) error {
		return userconfig.RememberUsername(serverURL, username)
	})

	snap = a.Store.Snapshot()
	o.printf("✓ %s\n", res.Message)
	o.printf("  User: %s (%s)\n", snap.User.FullName(), snap.User.Email)
	o.printf("  Role: %s\n", snap.Role().Label())

	if res.PasswordIsTemporary {
		o.printf("\nYour password is temporary. Run 'pilipi change-password' to set a new one.\n")
		return nil
	}

	landing := a.Nav.Navigate(a.Guard.Policy().LandingFor(snap.Role()))
	o.printf("  Home: %s\n", landing.Path)
	o.remember(a, func(serverURL string) error {
		return userconfig.RememberLocation(serverURL, landing.Path)
	})
	return nil
}
