package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
	"firestige.xyz/pktcraft/internal/transmit"
)

// Runner builds frames and hands them to a transmitter. Calls into the
// transmitter are serialised.
type Runner struct {
	pipeline *Pipeline
	tx       transmit.Transmitter

	mu sync.Mutex
}

// NewRunner wires p to tx.
func NewRunner(p *Pipeline, tx transmit.Transmitter) *Runner {
	return &Runner{pipeline: p, tx: tx}
}

// Pipeline returns the runner's pipeline.
func (r *Runner) Pipeline() *Pipeline { return r.pipeline }

// Driver names the transmitter.
func (r *Runner) Driver() string { return r.tx.Name() }

// Send builds spec and transmits the frame. The packet is returned even when
// transmission fails so callers can report what was built.
func (r *Runner) Send(ctx context.Context, spec core.FullPacketSpec) (*Packet, error) {
	pkt, err := r.pipeline.Build(spec)
	if err != nil {
		return nil, err
	}
	if err := r.SendFrame(ctx, pkt.Frame); err != nil {
		return pkt, err
	}
	return pkt, nil
}

// SendFrame transmits an already built frame.
func (r *Runner) SendFrame(ctx context.Context, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.tx.Send(ctx, frame); err != nil {
		r.pipeline.metrics.SendErrors.Add(1)
		return fmt.Errorf("send via %s: %w", r.tx.Name(), err)
	}
	r.pipeline.metrics.Sent.Add(1)
	slog.Debug("frame sent", "driver", r.tx.Name(), "bytes", len(frame))
	return nil
}

// Replay sends frames in order at the configured pace. Other sends wait
// until the sequence completes.
func (r *Runner) Replay(ctx context.Context, frames [][]byte, cfg config.ReplayConfig) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := transmit.NewReplayer(r.tx, cfg).Run(ctx, frames)
	r.pipeline.metrics.Sent.Add(uint64(n))
	if err != nil {
		r.pipeline.metrics.SendErrors.Add(1)
	}
	return n, err
}

// Close releases the transmitter.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tx.Close()
}
