package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pilipi-dev/pilipi/internal/models"
)

// NewChangePasswordCmd creates the change-password command
func NewChangePasswordCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)
	var change models.PasswordChange

	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChangePassword(cmd, o, change)
		},
	}

	cmd.Flags().StringVar(&change.OldPassword, "old-password", "", "Current password (will prompt if not provided)")
	cmd.Flags().StringVar(&change.NewPassword, "new-password", "", "New password (will prompt if not provided)")
	cmd.Flags().StringVar(&o.serverAlias, "server", "", "Server alias from pilipi.json")

	return cmd
}

func runChangePassword(cmd *cobra.Command, o *cmdOptions, change models.PasswordChange) error {
	if change.OldPassword == "" || change.NewPassword == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("passwords are required in non-interactive mode (use --old-password and --new-password)")
		}
		var err error
		if change.OldPassword == "" {
			if change.OldPassword, err = readPassword(o, "Current password: "); err != nil {
				return err
			}
		}
		if change.NewPassword == "" {
			if change.NewPassword, err = readPassword(o, "New password: "); err != nil {
				return err
			}
			if change.NewPasswordConfirm, err = readPassword(o, "Confirm new password: "); err != nil {
				return err
			}
		}
	}
	if change.NewPasswordConfirm == "" {
		change.NewPasswordConfirm = change.NewPassword
	}

	a, release, err := openApp(cmd.Context(), o)
	if err != nil {
		return err
	}
	defer release()

	if !a.Store.Snapshot().IsAuthenticated() {
		return ErrNotAuthenticated
	}

	res := a.Manager.ChangePassword(cmd.Context(), change)
	if err := resultErr(res); err != nil {
		return err
	}

	o.printf("✓ %s\n", res.Message)
	return nil
}
