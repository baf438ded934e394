package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pilipi-dev/pilipi/internal/cli/config"
	"github.com/pilipi-dev/pilipi/internal/cli/serverselect"
	"github.com/pilipi-dev/pilipi/internal/cli/userconfig"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)

	cmd := &cobra.Command{
		Use:   "select-server [url-or-alias]",
		Short: "Select the API server to use for commands",
		Long: `Select the API server to use for commands.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ pilipi select-server                                  # Interactive selection
  $ pilipi select-server https://api.pilipi.example/api   # Select by URL
  $ pilipi select-server production                       # Select by alias`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var urlOrAlias string
			if len(args) > 0 {
				urlOrAlias = args[0]
			}
			return runSelectServer(o, urlOrAlias)
		},
	}

	return cmd
}

func runSelectServer(o *cmdOptions, urlOrAlias string) error {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'pilipi init' to create a configuration file", err)
	}

	state, err := userconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load user config: %w", err)
	}

	var server *config.Server
	if urlOrAlias != "" {
		server, err = serverselect.Lookup(cfg, urlOrAlias)
	} else {
		server, err = serverselect.Prompt(cfg, state)
	}
	if err != nil {
		return err
	}

	if err := userconfig.SetSelectedServer(server.Key()); err != nil {
		return fmt.Errorf("failed to save selected server: %w", err)
	}

	o.printf("Selected server: %s (%s)\n", server.Alias, server.URL)
	if last := state.Server(server.Key()).LastUsername; last != "" {
		o.printf("Last logged in as %s\n", last)
	}
	return nil
}
