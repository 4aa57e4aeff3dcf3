package transmit

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
)

// HexWriter prints each frame as a hex dump. Useful without privileges.
type HexWriter struct {
	mu  sync.Mutex
	out io.Writer
	n   int
}

func NewHexWriter(out io.Writer) *HexWriter {
	return &HexWriter{out: out}
}

func (h *HexWriter) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.out == nil {
		return core.ErrTransmitterClosed
	}
	h.n++
	if _, err := fmt.Fprintf(h.out, "frame %d (%d bytes)\n%s", h.n, len(frame), hex.Dump(frame)); err != nil {
		return fmt.Errorf("hex: write: %w", err)
	}
	return nil
}

func (h *HexWriter) Name() string { return config.DriverHex }

func (h *HexWriter) Close() error {
	h.mu.Lock()
	h.out = nil
	h.mu.Unlock()
	return nil
}
