//go:build linux

package transmit

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
)

// RawSocket sends frames with sendto(2) on an AF_PACKET/SOCK_RAW socket.
type RawSocket struct {
	mu     sync.Mutex
	fd     int
	addr   *unix.SockaddrLinklayer
	device string
}

// NewRawSocket opens a packet socket bound to device. Requires CAP_NET_RAW.
func NewRawSocket(device string) (*RawSocket, error) {
	ifi, err := net.InterfaceByName(device)
	if err != nil {
		return nil, fmt.Errorf("rawsock: interface %s: %w", device, err)
	}
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("rawsock: socket: %w", err)
	}
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: bind %s: %w", device, err)
	}
	return &RawSocket{fd: fd, addr: sa, device: device}, nil
}

func (r *RawSocket) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fd < 0 {
		return core.ErrTransmitterClosed
	}
	if err := unix.Sendto(r.fd, frame, 0, r.addr); err != nil {
		return fmt.Errorf("rawsock: sendto %s: %w", r.device, err)
	}
	return nil
}

func (r *RawSocket) Name() string { return config.DriverRawSock }

func (r *RawSocket) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fd < 0 {
		return nil
	}
	err := unix.Close(r.fd)
	r.fd = -1
	return err
}
