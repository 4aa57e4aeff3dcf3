package cmd

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/core/decoder"
	"firestige.xyz/pktcraft/internal/packetfile"
	"firestige.xyz/pktcraft/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a frame and print every stage",
	Long: `Build a frame from a packet document (YAML or JSON) and print the transport
segment, the IPv4 datagram and the Ethernet frame as hex dumps.

Examples:
  pktcraft build -f syn.yaml
  pktcraft build -f syn.yaml --dump --verify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd.OutOrStdout(), newPipeline(), buildFile, buildDump, buildVerify)
	},
}

var (
	buildFile   string
	buildDump   bool
	buildVerify bool
)

func init() {
	buildCmd.Flags().StringVarP(&buildFile, "file", "f", "", "packet document (required)")
	buildCmd.Flags().BoolVar(&buildDump, "dump", false, "print a layer-by-layer dissection")
	buildCmd.Flags().BoolVar(&buildVerify, "verify", false, "decode the frame and report checksum status")
	buildCmd.MarkFlagRequired("file")
}

// newPipeline creates a pipeline from the loaded configuration.
func newPipeline() *pipeline.Pipeline {
	return pipeline.NewBuilder().FromConfig(globalCfg.Defaults).Build()
}

func runBuild(w io.Writer, p *pipeline.Pipeline, path string, dump, verify bool) error {
	_, spec, err := packetfile.LoadSpec(path)
	if err != nil {
		return err
	}
	pkt, err := p.Build(spec)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	segment := "segment"
	if pkt.Protocol == core.ProtocolIP {
		segment = "payload"
	}
	printStage(w, fmt.Sprintf("%s %s", pkt.Protocol, segment), pkt.Segment)
	printStage(w, "ipv4 datagram", pkt.Datagram)
	printStage(w, "ethernet frame", pkt.Frame)

	if verify {
		status, err := decoder.Verify(pkt.Frame)
		if err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}
		fmt.Fprintf(w, "checksums: ipv4=%s", verdict(status.IPv4))
		if pkt.Protocol != core.ProtocolIP {
			fmt.Fprintf(w, " %s=%s", pkt.Protocol, verdict(status.Transport))
		}
		fmt.Fprintln(w)
	}
	if dump {
		fmt.Fprint(w, dissect(pkt.Frame))
	}
	return nil
}

func printStage(w io.Writer, name string, b []byte) {
	fmt.Fprintf(w, "%s (%d bytes)\n%s\n", name, len(b), hex.Dump(b))
}

// dissect renders the frame with gopacket's layer dump.
func dissect(frame []byte) string {
	return gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default).Dump()
}

func verdict(ok bool) string {
	if ok {
		return "ok"
	}
	return "BAD"
}
