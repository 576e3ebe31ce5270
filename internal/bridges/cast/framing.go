package cast

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Framing constants.
const (
	// lengthPrefixSize is the size of the big-endian frame length.
	lengthPrefixSize = 4

	// MaxMessageSize is the largest frame accepted or sent (64 KB).
	MaxMessageSize = 65536
)

// framer reads and writes length-prefixed CastMessage frames.
// Writes are serialised; reads must come from a single goroutine.
type framer struct {
	rw        io.ReadWriter
	writeMu   sync.Mutex
	lengthBuf [lengthPrefixSize]byte
}

func newFramer(rw io.ReadWriter) *framer {
	return &framer{rw: rw}
}

// WriteMessage encodes and writes one message as a single frame.
func (f *framer) WriteMessage(m *CastMessage) error {
	data := m.Marshal()
	if len(data) > MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), MaxMessageSize)
	}

	frame := make([]byte, lengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[lengthPrefixSize:], data)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if _, err := f.rw.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads and decodes one frame.
func (f *framer) ReadMessage() (*CastMessage, error) {
	if _, err := io.ReadFull(f.rw, f.lengthBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read length prefix: %w", err)
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(f.lengthBuf[:])
	if length == 0 {
		return nil, ErrMessageEmpty
	}
	if length > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length, MaxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(f.rw, data); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return UnmarshalMessage(data)
}
