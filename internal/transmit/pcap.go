package transmit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/core"
)

// pcapSnapLen is the snapshot length written to the file header.
const pcapSnapLen = 65536

// PcapFile appends frames to a classic pcap stream with Ethernet link type.
type PcapFile struct {
	mu     sync.Mutex
	w      *pcapgo.Writer
	closer io.Closer
	now    func() time.Time
}

// OpenPcapFile creates (truncating) path and writes the pcap file header.
func OpenPcapFile(path string) (*PcapFile, error) {
	if path == "" {
		return nil, fmt.Errorf("pcap: output path is empty")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("pcap: create %s: %w", path, err)
	}
	p, err := NewPcapWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	p.closer = f
	return p, nil
}

// NewPcapWriter writes the pcap file header to w. The caller owns w.
func NewPcapWriter(w io.Writer) (*PcapFile, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(pcapSnapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("pcap: write file header: %w", err)
	}
	return &PcapFile{w: pw, now: time.Now}, nil
}

func (p *PcapFile) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return core.ErrTransmitterClosed
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     p.now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := p.w.WritePacket(ci, frame); err != nil {
		return fmt.Errorf("pcap: write packet: %w", err)
	}
	return nil
}

func (p *PcapFile) Name() string { return config.DriverPcap }

func (p *PcapFile) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = nil
	if p.closer != nil {
		err := p.closer.Close()
		p.closer = nil
		return err
	}
	return nil
}
