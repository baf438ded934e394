package commands

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pilipi-dev/pilipi/internal/logger"
	"github.com/pilipi-dev/pilipi/internal/web"
)

// NewServeCmd creates the serve command
func NewServeCmd(version string, opts ...Option) *cobra.Command {
	o := newCmdOptions(opts)
	var addr string
	var open bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the guarded views of this session on a local address",
		Long: `Serve the guarded views of this session on a local address.

Every GET is answered with the routing decision for the current session;
/session exposes login, logout and profile actions.

Examples:
  $ pilipi serve
  $ pilipi serve --addr 127.0.0.1:8080 --open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, o, version, addr, open)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from PILIPI_WEB_ADDR)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the landing page in the default browser")
	cmd.Flags().StringVar(&o.serverAlias, "server", "", "Server alias from pilipi.json")

	return cmd
}

func runServe(cmd *cobra.Command, o *cmdOptions, version, addr string, open bool) error {
	cfg, err := o.loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Web.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, release, err := openApp(ctx, o)
	if err != nil {
		return err
	}
	defer release()

	srv, err := web.New(cfg, a, logger.GetLogger().With().Str("component", "web").Logger(), version)
	if err != nil {
		return err
	}

	base := "http://" + cfg.Web.Addr
	o.printf("Serving %s for %s\n", base, a.ServerURL)
	o.printf("Press Ctrl+C to stop\n")

	if open {
		landing := a.Guard.Policy().Landing
		if err := openBrowser(base + landing); err != nil {
			o.printf("⚠ Could not open browser automatically: %v\n", err)
			o.printf("Please visit: %s%s\n", base, landing)
		}
	}

	return srv.Start(ctx)
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
