package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pilipi-dev/pilipi/internal/models"
)

// NewProfileCmd creates the profile command
func NewProfileCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update your profile",
		Long: `Update your profile. Only the fields passed as flags are changed.

Examples:
  $ pilipi profile --city Olinda --state PE
  $ pilipi profile --phone ""   # clear the phone number`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd, o, profileUpdateFromFlags(cmd.Flags()))
		},
	}

	f := cmd.Flags()
	f.String("first-name", "", "First name")
	f.String("last-name", "", "Last name")
	f.String("email", "", "Email address")
	f.String("phone", "", "Phone number")
	f.String("city", "", "City")
	f.String("state", "", "Two letter state code")
	f.String("address", "", "Street address")
	f.StringVar(&o.serverAlias, "server", "", "Server alias from pilipi.json")

	return cmd
}

// profileUpdateFromFlags sets a field only when its flag was given, so an
// explicit empty value still reaches the backend
func profileUpdateFromFlags(f *pflag.FlagSet) models.ProfileUpdate {
	changed := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}

	return models.ProfileUpdate{
		FirstName:   changed("first-name"),
		LastName:    changed("last-name"),
		Email:       changed("email"),
		PhoneNumber: changed("phone"),
		City:        changed("city"),
		State:       changed("state"),
		Address:     changed("address"),
	}
}

func runProfile(cmd *cobra.Command, o *cmdOptions, update models.ProfileUpdate) error {
	if update.IsEmpty() {
		return fmt.Errorf("nothing to update (pass at least one field flag, see --help)")
	}

	a, release, err := openApp(cmd.Context(), o)
	if err != nil {
		return err
	}
	defer release()

	if !a.Store.Snapshot().IsAuthenticated() {
		return ErrNotAuthenticated
	}

	res := a.Manager.UpdateProfile(cmd.Context(), update)
	if err := resultErr(res); err != nil {
		if !a.Store.Snapshot().IsAuthenticated() {
			return fmt.Errorf("%w\nYour session has ended. Run 'pilipi login' to sign in again", err)
		}
		return err
	}

	u := a.Store.Snapshot().User
	o.printf("✓ %s\n", res.Message)
	o.printf("  %s <%s>, %s/%s\n", u.FullName(), u.Email, u.City, u.State)
	return nil
}
