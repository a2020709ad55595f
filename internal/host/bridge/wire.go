package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Native-messaging framing: a 4-byte little-endian length followed by
// that many bytes of JSON.
const (
	// maxInboundFrame guards against a corrupted length prefix.
	maxInboundFrame = 16 << 20

	// maxOutboundFrame matches the browser-side limit on messages sent
	// to the extension.
	maxOutboundFrame = 1 << 20
)

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint32(header[:])
	if size == 0 {
		return nil, fmt.Errorf("zero-length frame")
	}
	if size > maxInboundFrame {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	return data, nil
}

func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxOutboundFrame {
		return fmt.Errorf("frame of %d bytes exceeds outbound limit", len(data))
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(data)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}

	return nil
}
