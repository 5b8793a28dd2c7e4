package protocol

import (
	"bytes"

	"github.com/adcondev/relay-daemon/internal/relayerr"
)

// Framer accumulates stream bytes and cuts complete chat frames. A frame is
// everything up to and including the first sentinel occurrence; bytes after
// the sentinel stay buffered for the next frame.
type Framer struct {
	sentinel []byte
	maxSize  int
	buf      []byte
}

// NewFramer creates a framer. maxSize <= 0 disables the size limit.
func NewFramer(sentinel string, maxSize int) *Framer {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	return &Framer{
		sentinel: []byte(sentinel),
		maxSize:  maxSize,
	}
}

// Push appends p and returns every frame completed by it, in order.
// It returns relayerr.ErrFrameTooLarge once the unterminated tail exceeds
// maxSize; frames completed before that point are still returned.
func (f *Framer) Push(p []byte) ([][]byte, error) {
	f.buf = append(f.buf, p...)

	var frames [][]byte
	for {
		idx := bytes.Index(f.buf, f.sentinel)
		if idx < 0 {
			break
		}
		end := idx + len(f.sentinel)
		frame := make([]byte, end)
		copy(frame, f.buf[:end])
		frames = append(frames, frame)
		f.buf = f.buf[end:]
	}

	if len(f.buf) == 0 {
		f.buf = nil
	}

	if f.maxSize > 0 && len(f.buf) > f.maxSize {
		return frames, relayerr.ErrFrameTooLarge
	}
	return frames, nil
}

// Pending returns the number of buffered bytes not yet part of a frame.
func (f *Framer) Pending() int {
	return len(f.buf)
}
