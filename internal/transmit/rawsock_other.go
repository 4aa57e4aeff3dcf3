//go:build !linux

package transmit

import (
	"context"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
)

// RawSocket is only available on linux.
type RawSocket struct{}

func NewRawSocket(string) (*RawSocket, error) { return nil, core.ErrUnsupportedPlatform }

func (*RawSocket) Send(context.Context, []byte) error { return core.ErrUnsupportedPlatform }
func (*RawSocket) Name() string                        { return config.DriverRawSock }
func (*RawSocket) Close() error                        { return nil }
