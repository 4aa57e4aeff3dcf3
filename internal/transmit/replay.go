package transmit

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/metrics"
)

// Replayer sends a sequence of frames in order, paced by a token bucket.
type Replayer struct {
	tx      Transmitter
	limiter *rate.Limiter
}

// NewReplayer paces tx at cfg.RatePPS frames per second. A zero rate sends
// as fast as the transmitter accepts.
func NewReplayer(tx Transmitter, cfg config.ReplayConfig) *Replayer {
	limit := rate.Inf
	if cfg.RatePPS > 0 {
		limit = rate.Limit(cfg.RatePPS)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Replayer{tx: tx, limiter: rate.NewLimiter(limit, burst)}
}

// Run sends frames in order and returns how many were sent. It stops at the
// first transmit error or when ctx is done.
func (r *Replayer) Run(ctx context.Context, frames [][]byte) (int, error) {
	for i, frame := range frames {
		if err := r.limiter.Wait(ctx); err != nil {
			metrics.ReplayFramesTotal.WithLabelValues("cancelled").Add(float64(len(frames) - i))
			return i, fmt.Errorf("replay: stopped after %d of %d frames: %w", i, len(frames), err)
		}
		if err := r.tx.Send(ctx, frame); err != nil {
			metrics.ReplayFramesTotal.WithLabelValues("error").Inc()
			return i, fmt.Errorf("replay: frame %d: %w", i, err)
		}
		metrics.ReplayFramesTotal.WithLabelValues("sent").Inc()
	}
	slog.Debug("replay finished", "frames", len(frames), "driver", r.tx.Name())
	return len(frames), nil
}
