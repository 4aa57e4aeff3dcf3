package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/daemon"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pktcraft daemon in foreground",
	Long: `Run the daemon in foreground.

The daemon will:
  1. Load global configuration and initialise logging
  2. Start the Prometheus metrics server (if enabled)
  3. Open the frame store and the configured transmitter
  4. Serve JSON-RPC on the control socket
  5. Reload log and replay settings on SIGHUP
  6. Stop on SIGINT, SIGTERM or a daemon_shutdown request`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, globalCfg, configFile, servePIDFile)
	},
}

var servePIDFile string

func init() {
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "write the daemon PID to this file")
}

func runServe(ctx context.Context, cfg *config.GlobalConfig, configPath, pidFile string) error {
	d := daemon.New(cfg, configPath, pidFile)
	if err := d.Start(); err != nil {
		return err
	}
	return d.Run(ctx)
}
