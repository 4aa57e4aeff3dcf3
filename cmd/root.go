// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/command"
	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/log"
)

var (
	// Global flags
	configFile string
	socketPath string

	// globalCfg is loaded before every subcommand runs.
	globalCfg *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pktcraft",
	Short: "pktcraft - build and send hand-crafted IPv4 frames",
	Long: `pktcraft builds Ethernet II frames carrying IPv4 with TCP, UDP, ICMP or raw
payloads from a packet document, where every header field is either computed
automatically or overridden with an exact value.

Frames can be printed, written to a pcap file, sent on a live interface, saved
for later, and replayed as a paced sequence. A long-running daemon exposes the
same operations over a local control socket.`,
	Version:           command.Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and PKTCRAFT_* environment when empty)")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "",
		"daemon socket path (overrides control.socket)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(framesCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
}

// loadConfig reads configuration and initialises logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Control.Socket = socketPath
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialise logging: %w", err)
	}
	globalCfg = cfg
	return nil
}
