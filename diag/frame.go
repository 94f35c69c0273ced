// Package diag carries kernel log lines off the board and draws the
// diagnostic console.
//
// On the wire each line is a frame:
//
//	0x7E | len (uint16 LE) | payload | crc16 CCITT-FALSE of payload (LE)
package diag

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sigurn/crc16"
)

const (
	frameStart = 0x7E
	// MaxPayload bounds a single frame.
	MaxPayload = 1024
)

var (
	ErrBadCRC   = errors.New("diag: frame checksum mismatch")
	ErrTooLarge = errors.New("diag: frame too large")
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Checksum is the frame checksum of p.
func Checksum(p []byte) uint16 {
	return crc16.Checksum(p, crcTable)
}

// Encoder writes frames. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(p []byte) error {
	if len(p) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(p))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf = append(e.buf[:0], frameStart, 0, 0)
	binary.LittleEndian.PutUint16(e.buf[1:], uint16(len(p)))
	e.buf = append(e.buf, p...)
	e.buf = binary.LittleEndian.AppendUint16(e.buf, Checksum(p))
	_, err := e.w.Write(e.buf)
	return err
}

// Decoder reads frames, skipping any bytes before a start marker.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode returns the next payload. A frame with a bad checksum is consumed
// and reported as ErrBadCRC, so the caller may keep reading.
func (d *Decoder) Decode() ([]byte, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == frameStart {
			break
		}
	}
	var hdr [2]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return nil, unexpected(err)
	}
	n := int(binary.LittleEndian.Uint16(hdr[:]))
	if n > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, unexpected(err)
	}
	p := buf[:n]
	if got := binary.LittleEndian.Uint16(buf[n:]); got != Checksum(p) {
		return p, fmt.Errorf("%w: got %#04x, want %#04x", ErrBadCRC, got, Checksum(p))
	}
	return p, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// FrameLogger is a hal.Logger that frames every line.
type FrameLogger struct {
	enc *Encoder
}

func NewFrameLogger(w io.Writer) *FrameLogger {
	return &FrameLogger{enc: NewEncoder(w)}
}

func (l *FrameLogger) WriteLineString(s string) {
	_ = l.enc.Encode([]byte(s))
}

func (l *FrameLogger) WriteLineBytes(b []byte) {
	_ = l.enc.Encode(b)
}
