package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/core/options"
)

var optionsCmd = &cobra.Command{
	Use:       "options [ipv4|tcp]",
	Short:     "List option names accepted in packet documents",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"ipv4", "tcp"},
	Run: func(cmd *cobra.Command, args []string) {
		runOptions(cmd.OutOrStdout(), args)
	},
}

func runOptions(w io.Writer, args []string) {
	families := []options.Family{options.IPv4, options.TCP}
	if len(args) == 1 {
		families = families[:1]
		if args[0] == "tcp" {
			families = []options.Family{options.TCP}
		}
	}
	for _, f := range families {
		fmt.Fprintf(w, "%s: %s\n", f, strings.Join(options.Names(f), " "))
	}
}
