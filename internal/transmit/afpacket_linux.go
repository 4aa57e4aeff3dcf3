//go:build linux

package transmit

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
)

// AFPacket sends frames through a TPACKET_V3 socket bound to one interface.
type AFPacket struct {
	mu     sync.Mutex
	handle *afpacket.TPacket
	device string
}

// NewAFPacket opens a ring on device sized by cfg.
func NewAFPacket(device string, cfg config.AFPacketConfig) (*AFPacket, error) {
	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.FrameSize, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("afpacket: %w", err)
	}
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(device),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(time.Duration(cfg.TimeoutMs)*time.Millisecond),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("afpacket: open %s: %w", device, err)
	}
	return &AFPacket{handle: tp, device: device}, nil
}

func (a *AFPacket) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle == nil {
		return core.ErrTransmitterClosed
	}
	if err := a.handle.WritePacketData(frame); err != nil {
		return fmt.Errorf("afpacket: write on %s: %w", a.device, err)
	}
	return nil
}

func (a *AFPacket) Name() string { return config.DriverAFPacket }

func (a *AFPacket) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle != nil {
		a.handle.Close()
		a.handle = nil
	}
	return nil
}
