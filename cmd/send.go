package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/packetfile"
	"firestige.xyz/pktcraft/internal/pipeline"
	"firestige.xyz/pktcraft/internal/store"
	"firestige.xyz/pktcraft/internal/transmit"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Build a frame and transmit it",
	Long: `Build a frame from a packet document and hand it to a transmitter.

Drivers:
  rawsock   AF_PACKET socket on -i (linux, CAP_NET_RAW)
  afpacket  TPACKET_V3 ring on -i (linux, CAP_NET_RAW)
  pcap      append to transmit.pcap_path
  hex       print a hex dump

Examples:
  pktcraft send -f syn.yaml -i eth0
  pktcraft send -f syn.yaml --driver hex --save syn-probe
  pktcraft send -f syn.yaml --remote`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if sendRemote {
			return runRemoteSend(ctx, newClient(), cmd.OutOrStdout(), sendFile, sendSave)
		}

		_, spec, err := packetfile.LoadSpec(sendFile)
		if err != nil {
			return err
		}
		runner, err := newRunner(cmd.OutOrStdout(), sendInterface, sendDriver)
		if err != nil {
			return err
		}
		defer runner.Close()

		var fs store.FrameStore
		if sendSave != "" {
			if fs, err = store.NewFileFrameStore(globalCfg.Store.Dir); err != nil {
				return err
			}
		}
		return runSend(ctx, cmd.OutOrStdout(), runner, fs, spec, sendSave)
	},
}

var (
	sendFile      string
	sendInterface string
	sendDriver    string
	sendSave      string
	sendRemote    bool
)

func init() {
	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "", "packet document (required)")
	sendCmd.Flags().StringVarP(&sendInterface, "interface", "i", "", "interface (overrides transmit.interface)")
	sendCmd.Flags().StringVar(&sendDriver, "driver", "", "transmit driver (overrides transmit.driver)")
	sendCmd.Flags().StringVar(&sendSave, "save", "", "store the sent frame under this label")
	sendCmd.Flags().BoolVar(&sendRemote, "remote", false, "build and send through the daemon")
	sendCmd.MarkFlagRequired("file")
}

// newRunner opens the configured transmitter, with flag overrides applied.
func newRunner(out io.Writer, iface, driver string) (*pipeline.Runner, error) {
	tc := globalCfg.Transmit
	if iface != "" {
		tc.Interface = iface
	}
	if driver != "" {
		tc.Driver = driver
	}
	if tc.Driver == config.DriverPcap && tc.PcapPath == "" {
		return nil, fmt.Errorf("driver pcap needs transmit.pcap_path")
	}
	tx, err := transmit.New(tc, out)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(newPipeline(), tx), nil
}

func runSend(ctx context.Context, w io.Writer, runner *pipeline.Runner, fs store.FrameStore, spec core.FullPacketSpec, label string) error {
	pkt, err := runner.Send(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "sent %d byte %s frame via %s\n", len(pkt.Frame), pkt.Protocol, runner.Driver())

	if label == "" || fs == nil {
		return nil
	}
	saved, err := fs.Save(store.SavedFrame{Label: label, Protocol: pkt.Protocol, Frame: pkt.Frame})
	if err != nil {
		return fmt.Errorf("frame sent but not saved: %w", err)
	}
	fmt.Fprintf(w, "saved as %s (%s)\n", saved.ID, label)
	return nil
}

func runRemoteSend(ctx context.Context, client ClientInterface, w io.Writer, path, label string) error {
	doc, err := packetfile.LoadRaw(path)
	if err != nil {
		return err
	}
	res, err := client.PacketSend(ctx, doc, label)
	if err != nil {
		return fmt.Errorf("daemon send failed: %w", err)
	}
	fmt.Fprintf(w, "sent %d byte %s frame via %s (daemon)\n", res.FrameLen, res.Protocol, res.Driver)
	if res.SavedID != "" {
		fmt.Fprintf(w, "saved as %s (%s)\n", res.SavedID, label)
	}
	return nil
}
