package commands

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pilipi-dev/pilipi/internal/models"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)
	var reg models.Registration
	var userType string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a client or service provider account",
		Long: `Create a client or service provider account.

Service providers must pick at least one service category.

Examples:
  $ pilipi register --username ana --email ana@example.com --first-name Ana --last-name Lima \
      --city Recife --state PE --type client
  $ pilipi register ... --type provider --categories 1,4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg.UserType = models.UserType(userType)
			return runRegister(cmd, o, reg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&reg.Username, "username", "", "Username")
	f.StringVar(&reg.Email, "email", "", "Email address")
	f.StringVar(&reg.Password, "password", "", "Password (or set PILIPI_PASSWORD, will prompt if not provided)")
	f.StringVar(&reg.FirstName, "first-name", "", "First name")
	f.StringVar(&reg.LastName, "last-name", "", "Last name")
	f.StringVar(&userType, "type", "", "Account type: client or provider (will prompt if not provided)")
	f.StringVar(&reg.PhoneNumber, "phone", "", "Phone number")
	f.StringVar(&reg.City, "city", "", "City")
	f.StringVar(&reg.State, "state", "", "Two letter state code")
	f.StringVar(&reg.Address, "address", "", "Street address")
	f.IntSliceVar(&reg.ServiceCategories, "categories", nil, "Service category IDs (providers only)")
	f.StringVar(&o.serverAlias, "server", "", "Server alias from pilipi.json")

	return cmd
}

func runRegister(cmd *cobra.Command, o *cmdOptions, reg models.Registration) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	if reg.UserType == "" {
		if !interactive {
			return fmt.Errorf("account type is required in non-interactive mode (use --type client or --type provider)")
		}
		t, err := promptUserType()
		if err != nil {
			return err
		}
		reg.UserType = t
	}

	if reg.Password == "" {
		reg.Password = os.Getenv("PILIPI_PASSWORD")
	}
	if reg.Password == "" {
		if !interactive {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or PILIPI_PASSWORD env var)")
		}
		pw, err := readPassword(o, "Password: ")
		if err != nil {
			return err
		}
		confirm, err := readPassword(o, "Confirm password: ")
		if err != nil {
			return err
		}
		reg.Password, reg.PasswordConfirm = pw, confirm
	}
	if reg.PasswordConfirm == "" {
		reg.PasswordConfirm = reg.Password
	}

	a, release, err := openApp(cmd.Context(), o)
	if err != nil {
		return err
	}
	defer release()

	res := a.Manager.Register(cmd.Context(), reg)
	if err := resultErr(res); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	o.printf("✓ %s\n", res.Message)
	o.printf("  Run 'pilipi login --username %s' to sign in.\n", reg.Username)
	return nil
}

func promptUserType() (models.UserType, error) {
	types := []models.UserType{models.UserTypeClient, models.UserTypeProvider}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "✓ {{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Account type",
		Items:     types,
		Templates: templates,
		Size:      len(types),
	}

	index, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}
	return types[index], nil
}

func readPassword(o *cmdOptions, label string) (string, error) {
	o.printf("%s", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	o.printf("\n")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
