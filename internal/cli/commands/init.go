package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pilipi-dev/pilipi/internal/cli/config"
)

// NewInitCmd creates the init command
func NewInitCmd(opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)
	var alias string

	cmd := &cobra.Command{
		Use:   "init <api-url>",
		Short: "Add a marketplace API server to ./pilipi.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(o, args[0], alias)
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Name for the server (default: production, then server-N)")

	return cmd
}

func runInit(o *cmdOptions, apiURL, alias string) error {
	server := config.Server{URL: apiURL}
	if err := server.Validate(); err != nil {
		return err
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		o.printf("Found existing %s\n", config.ConfigFileName)
	} else {
		cfg = &config.Config{Servers: []config.Server{}}
		isNewConfig = true
	}

	if existing, err := cfg.GetServerByURL(server.Key()); err == nil {
		o.printf("Server %s already exists in %s (%s)\n", server.URL, config.ConfigFileName, existing.Alias)
		return nil
	}

	if alias == "" {
		if len(cfg.Servers) == 0 {
			alias = "production"
		} else {
			alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
		}
	}
	if _, err := cfg.GetServerByAlias(alias); err == nil {
		return fmt.Errorf("alias %q is already used in %s", alias, config.ConfigFileName)
	}
	server.Alias = alias

	cfg.Servers = append(cfg.Servers, server)
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		o.printf("✓ Created ./%s with server %s (%s)\n", config.ConfigFileName, server.URL, alias)
	} else {
		o.printf("✓ Added server %s (%s) to ./%s\n", server.URL, alias, config.ConfigFileName)
	}

	o.printf("\nNext steps:\n")
	o.printf("  1. Run 'pilipi register' to create an account, or\n")
	o.printf("  2. Run 'pilipi login' to sign in\n")

	return nil
}
