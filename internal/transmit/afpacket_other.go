//go:build !linux

package transmit

import (
	"context"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
)

// AFPacket is only available on linux.
type AFPacket struct{}

func NewAFPacket(string, config.AFPacketConfig) (*AFPacket, error) {
	return nil, core.ErrUnsupportedPlatform
}

func (*AFPacket) Send(context.Context, []byte) error { return core.ErrUnsupportedPlatform }
func (*AFPacket) Name() string                        { return config.DriverAFPacket }
func (*AFPacket) Close() error                        { return nil }
