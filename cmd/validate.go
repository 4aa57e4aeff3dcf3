package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/packetfile"
	"firestige.xyz/pktcraft/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a packet document",
	Long: `Parse a packet document and build it without sending, reporting the first
problem found. File format is YAML or JSON.

Examples:
  pktcraft validate -f syn.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !runValidate(cmd.OutOrStdout(), newPipeline(), validateFile) {
			return fmt.Errorf("%s is not a valid packet document", validateFile)
		}
		return nil
	},
}

var validateFile string

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "",
		"packet document to validate (required)")
	validateCmd.MarkFlagRequired("file")
}

// runValidate prints VALID or INVALID and reports which.
func runValidate(w io.Writer, p *pipeline.Pipeline, path string) bool {
	doc, spec, err := packetfile.LoadSpec(path)
	if err == nil {
		var pkt *pipeline.Packet
		if pkt, err = p.Build(spec); err == nil {
			label := doc.Label
			if label == "" {
				label = path
			}
			fmt.Fprintf(w, "VALID: %q: %s, %d byte frame\n", label, pkt.Protocol, len(pkt.Frame))
			return true
		}
	}
	fmt.Fprintf(w, "INVALID: %v\n", err)
	return false
}
