package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// DefaultMaxFrameSize bounds a single frame of a framed stream.
const DefaultMaxFrameSize = 2 << 20

var ErrFrameTooLarge = errors.New("frame too large")

// WriteFrame writes value prefixed by its uvarint encoded length.
func WriteFrame(w io.Writer, value Encodable) (int, error) {
	buf, err := Encode(value)
	if err != nil {
		return 0, err
	}
	written, err := w.Write(varint.ToUvarint(uint64(len(buf))))
	if err != nil {
		return written, err
	}
	m, err := w.Write(buf)
	return written + m, err
}

// FrameReader reads a stream of frames written by WriteFrame.
type FrameReader struct {
	r       *bufio.Reader
	maxSize int
	buf     []byte
}

func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &FrameReader{r: bufio.NewReader(r), maxSize: maxSize}
}

// Next decodes the next frame into value. It returns io.EOF once the stream
// ends on a frame boundary and io.ErrUnexpectedEOF if it ends inside one.
func (fr *FrameReader) Next(value Decodable) error {
	size, err := varint.ReadUvarint(fr.r)
	switch {
	case errors.Is(err, io.EOF):
		return io.EOF
	case err != nil:
		return fmt.Errorf("read frame size: %w", err)
	case size > uint64(fr.maxSize):
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, fr.maxSize)
	}
	if cap(fr.buf) < int(size) {
		fr.buf = make([]byte, size)
	}
	fr.buf = fr.buf[:size]
	if _, err := io.ReadFull(fr.r, fr.buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read frame: %w", err)
	}
	return Decode(fr.buf, value)
}
