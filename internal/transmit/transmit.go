// Package transmit hands built frames to a sink: a live interface, a pcap
// file or a hex dump.
package transmit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/metrics"
)

// Transmitter writes complete Ethernet frames.
type Transmitter interface {
	// Send writes one frame. The frame is not retained after Send returns.
	Send(ctx context.Context, frame []byte) error
	// Name identifies the driver in logs and metrics.
	Name() string
	Close() error
}

// New builds the transmitter selected by cfg. Text drivers write to out.
func New(cfg config.TransmitConfig, out io.Writer) (Transmitter, error) {
	var (
		t   Transmitter
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case config.DriverAFPacket:
		if cfg.Interface == "" {
			return nil, fmt.Errorf("transmit: driver %s requires an interface", cfg.Driver)
		}
		t, err = NewAFPacket(cfg.Interface, cfg.AFPacket)
	case config.DriverRawSock:
		if cfg.Interface == "" {
			return nil, fmt.Errorf("transmit: driver %s requires an interface", cfg.Driver)
		}
		t, err = NewRawSocket(cfg.Interface)
	case config.DriverPcap:
		t, err = OpenPcapFile(cfg.PcapPath)
	case config.DriverHex:
		t = NewHexWriter(out)
	default:
		return nil, fmt.Errorf("transmit: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("transmitter opened", "driver", t.Name(), "interface", cfg.Interface)
	return Instrument(t), nil
}

// Instrument wraps t so every Send is counted.
func Instrument(t Transmitter) Transmitter {
	if _, ok := t.(*instrumented); ok {
		return t
	}
	return &instrumented{Transmitter: t}
}

type instrumented struct {
	Transmitter
}

func (i *instrumented) Send(ctx context.Context, frame []byte) error {
	name := i.Transmitter.Name()
	if err := i.Transmitter.Send(ctx, frame); err != nil {
		metrics.TransmitTotal.WithLabelValues(name, "error").Inc()
		return err
	}
	metrics.TransmitTotal.WithLabelValues(name, "ok").Inc()
	metrics.TransmitBytesTotal.WithLabelValues(name).Add(float64(len(frame)))
	return nil
}
