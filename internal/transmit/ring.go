package transmit

import "fmt"

// recomputeSize derives TPACKET ring geometry from a memory budget.
//
// PACKET_MMAP requires:
//  1. frameSize is a multiple of TPACKET_ALIGNMENT (16)
//  2. blockSize is a multiple of the page size
//  3. blockSize is a multiple of frameSize
//
// blockSize * numBlocks approximates bufferSizeMB.
func recomputeSize(bufferSizeMB, maxFrame, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const tpacketAlignment = 16
	const tpacketHdrLen = 52 // TPACKET3_HDRLEN, rounded

	if bufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("bufferSizeMB must be positive, got %d", bufferSizeMB)
	}
	if maxFrame <= 0 {
		return 0, 0, 0, fmt.Errorf("frame size must be positive, got %d", maxFrame)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("pageSize must be positive and multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+maxFrame, tpacketAlignment)

	// Every valid block is a multiple of lcm(pageSize, frameSize).
	blockSize = lcm(pageSize, frameSize)
	const maxBlockSize = 4 << 20
	if blockSize > maxBlockSize {
		return 0, 0, 0, fmt.Errorf("frame size %d needs a %d byte block, above the %d byte limit", frameSize, blockSize, maxBlockSize)
	}

	numBlocks = (bufferSizeMB << 20) / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, to int) int {
	return (n + to - 1) / to * to
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

// htons converts a 16-bit value to network byte order.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
