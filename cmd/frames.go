package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/metrics"
	"firestige.xyz/pktcraft/internal/pipeline"
	"firestige.xyz/pktcraft/internal/store"
	"firestige.xyz/pktcraft/internal/transmit"
)

// framesCmd represents the frames command group
var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Manage saved frames",
	Long: `Manage frames saved with "send --save".

Subcommands:
  list    - List saved frames, oldest first
  show    - Print a saved frame
  delete  - Delete a saved frame
  clear   - Delete every saved frame
  replay  - Send saved frames in order
  export  - Write saved frames to a pcap file

list, delete and replay accept --remote to act on the daemon's store.`,
}

var framesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved frames",
	RunE: func(cmd *cobra.Command, args []string) error {
		if framesRemote {
			return runRemoteFramesList(cmd.Context(), newClient(), cmd.OutOrStdout())
		}
		fs, err := openStore()
		if err != nil {
			return err
		}
		return runFramesList(cmd.OutOrStdout(), fs)
	},
}

var framesShowCmd = &cobra.Command{
	Use:   "show <frame-id>",
	Short: "Print a saved frame",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := openStore()
		if err != nil {
			return err
		}
		return runFrameShow(cmd.OutOrStdout(), fs, args[0], framesDump)
	},
}

var framesDeleteCmd = &cobra.Command{
	Use:   "delete <frame-id>",
	Short: "Delete a saved frame",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if framesRemote {
			if err := newClient().FrameDelete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}
		fs, err := openStore()
		if err != nil {
			return err
		}
		return runFrameDelete(cmd.OutOrStdout(), fs, args[0])
	},
}

var framesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved frame",
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := openStore()
		if err != nil {
			return err
		}
		n, err := fs.Clear()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d frame(s)\n", n)
		return nil
	},
}

var framesReplayCmd = &cobra.Command{
	Use:   "replay [frame-id...]",
	Short: "Send saved frames in order",
	Long: `Send saved frames through the configured transmitter, paced by
replay.rate_pps and replay.burst. Without ids every saved frame is sent,
oldest first; with ids they are sent in the order given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if framesRemote {
			sent, err := newClient().SequenceSend(ctx, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d frame(s) (daemon)\n", sent)
			return nil
		}
		fs, err := openStore()
		if err != nil {
			return err
		}
		runner, err := newRunner(cmd.OutOrStdout(), framesInterface, framesDriver)
		if err != nil {
			return err
		}
		defer runner.Close()
		return runReplay(ctx, cmd.OutOrStdout(), runner, fs, args, globalCfg.Replay)
	},
}

var framesExportCmd = &cobra.Command{
	Use:   "export [frame-id...]",
	Short: "Write saved frames to a pcap file",
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := openStore()
		if err != nil {
			return err
		}
		return runExport(cmd.Context(), cmd.OutOrStdout(), fs, args, framesOutput)
	},
}

var (
	framesRemote    bool
	framesDump      bool
	framesInterface string
	framesDriver    string
	framesOutput    string
)

func init() {
	for _, c := range []*cobra.Command{framesListCmd, framesDeleteCmd, framesReplayCmd} {
		c.Flags().BoolVar(&framesRemote, "remote", false, "act on the daemon's store")
	}
	framesShowCmd.Flags().BoolVar(&framesDump, "dump", false, "print a layer-by-layer dissection")
	framesReplayCmd.Flags().StringVarP(&framesInterface, "interface", "i", "", "interface (overrides transmit.interface)")
	framesReplayCmd.Flags().StringVar(&framesDriver, "driver", "", "transmit driver (overrides transmit.driver)")
	framesExportCmd.Flags().StringVarP(&framesOutput, "output", "o", "", "pcap file to write (required)")
	framesExportCmd.MarkFlagRequired("output")

	framesCmd.AddCommand(framesListCmd)
	framesCmd.AddCommand(framesShowCmd)
	framesCmd.AddCommand(framesDeleteCmd)
	framesCmd.AddCommand(framesClearCmd)
	framesCmd.AddCommand(framesReplayCmd)
	framesCmd.AddCommand(framesExportCmd)
}

func openStore() (store.FrameStore, error) {
	return store.NewFileFrameStore(globalCfg.Store.Dir)
}

func runFramesList(w io.Writer, fs store.FrameStore) error {
	frames, err := fs.List()
	if err != nil {
		return err
	}
	metrics.StoredFrames.Set(float64(len(frames)))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tPROTOCOL\tBYTES\tCREATED")
	for _, f := range frames {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.ID, f.Label, f.Protocol, len(f.Frame), f.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runRemoteFramesList(ctx context.Context, client ClientInterface, w io.Writer) error {
	frames, err := client.FrameList(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tPROTOCOL\tBYTES\tCREATED")
	for _, f := range frames {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.ID, f.Label, f.Protocol, f.Bytes, f.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runFrameShow(w io.Writer, fs store.FrameStore, id string, dump bool) error {
	f, err := fs.Load(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id:       %s\nlabel:    %s\nprotocol: %s\ncreated:  %s\n\n", f.ID, f.Label, f.Protocol, f.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "frame (%d bytes)\n%s", len(f.Frame), hex.Dump(f.Frame))
	if dump {
		fmt.Fprintln(w)
		fmt.Fprint(w, dissect(f.Frame))
	}
	return nil
}

func runFrameDelete(w io.Writer, fs store.FrameStore, id string) error {
	if err := fs.Delete(id); err != nil {
		return err
	}
	fmt.Fprintf(w, "deleted %s\n", id)
	return nil
}

// selectFrames loads ids in order, or every frame when ids is empty.
func selectFrames(fs store.FrameStore, ids []string) ([]store.SavedFrame, error) {
	if len(ids) == 0 {
		return fs.List()
	}
	frames := make([]store.SavedFrame, 0, len(ids))
	for _, id := range ids {
		f, err := fs.Load(id)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func runReplay(ctx context.Context, w io.Writer, runner *pipeline.Runner, fs store.FrameStore, ids []string, cfg config.ReplayConfig) error {
	saved, err := selectFrames(fs, ids)
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		fmt.Fprintln(w, "no saved frames")
		return nil
	}
	frames := make([][]byte, len(saved))
	for i, f := range saved {
		frames[i] = f.Frame
	}
	sent, err := runner.Replay(ctx, frames, cfg)
	fmt.Fprintf(w, "replayed %d of %d frame(s) via %s\n", sent, len(frames), runner.Driver())
	return err
}

func runExport(ctx context.Context, w io.Writer, fs store.FrameStore, ids []string, path string) error {
	saved, err := selectFrames(fs, ids)
	if err != nil {
		return err
	}
	pf, err := transmit.OpenPcapFile(path)
	if err != nil {
		return err
	}
	for _, f := range saved {
		if err := pf.Send(ctx, f.Frame); err != nil {
			pf.Close()
			return err
		}
	}
	if err := pf.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %d frame(s) to %s\n", len(saved), path)
	return nil
}
