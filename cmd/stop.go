package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	Long: `Stop the daemon through the control socket, or by signalling the process
recorded in --pid-file when the socket does not answer.

Examples:
  pktcraft stop
  pktcraft stop --pid-file /run/pktcraft.pid`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if stopPIDFile != "" {
			if err := daemon.StopByPIDFile(stopPIDFile, 10*time.Second); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "daemon stopped")
			return nil
		}
		return runStop(cmd.Context(), newClient(), cmd.OutOrStdout())
	},
}

var stopPIDFile string

func init() {
	stopCmd.Flags().StringVar(&stopPIDFile, "pid-file", "", "signal the process in this PID file instead")
}

func runStop(ctx context.Context, client ClientInterface, w io.Writer) error {
	if err := client.DaemonShutdown(ctx); err != nil {
		return fmt.Errorf("daemon shutdown failed: %w", err)
	}
	fmt.Fprintln(w, "daemon shutting down")
	return nil
}
