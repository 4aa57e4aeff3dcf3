package pipeline

import (
	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core/decoder"
	"firestige.xyz/pktcraft/internal/core/encoder"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Options directly.
type Builder struct {
	opts Options
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// FromConfig seeds the builder with site defaults.
func (b *Builder) FromConfig(cfg config.DefaultsConfig) *Builder {
	b.opts.Defaults.DSCP = uint8(cfg.DSCP & 0x3F)
	b.opts.Verify = cfg.Verify
	return b
}

// WithDSCP sets the DSCP written when ipv4.dscp is auto.
func (b *Builder) WithDSCP(dscp uint8) *Builder {
	b.opts.Defaults.DSCP = dscp & 0x3F
	return b
}

// WithPorts sets the source of automatic TCP ports.
func (b *Builder) WithPorts(ps encoder.PortSource) *Builder {
	b.opts.Defaults.Ports = ps
	return b
}

// WithVerify toggles post-build checksum verification.
func (b *Builder) WithVerify(v bool) *Builder {
	b.opts.Verify = v
	return b
}

// WithDecoder sets the decoder used for verification.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.opts.Decoder = d
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.opts)
}
