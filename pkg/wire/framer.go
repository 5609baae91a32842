// Package wire implements the envelope framing shared by the load balancer
// and the application servers.
//
// Every frame on the LB↔server hop has the layout
//
//	u32_be total_len
//	u8     cid_len
//	bytes  client_id   (cid_len bytes, UTF-8)
//	bytes  payload     (total_len - 1 - cid_len bytes)
//
// where total_len counts everything after the 4-byte length word. The client
// hop is unframed: client bytes travel as envelope payloads and are delivered
// to the client socket with the wrapper stripped.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/classmux/classmux/pkg/bufpool"
)

const (
	// DefaultMaxFrameSize caps total_len. Violations are fatal to the
	// connection on both sides.
	DefaultMaxFrameSize = 10 << 20 // 10 MiB

	// MaxClientIDLen is the largest client identifier the u8 length field
	// can describe.
	MaxClientIDLen = 255

	headerLen = 4
)

var (
	// ErrClientIDTooLong indicates a client id above 255 bytes.
	ErrClientIDTooLong = errors.New("client id exceeds 255 bytes")

	// ErrFrameTooLarge indicates total_len above the configured cap.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrInvalidHeader indicates a length word that cannot describe a frame
	// (zero, or a cid_len larger than the frame itself).
	ErrInvalidHeader = errors.New("malformed frame header")

	// ErrTruncated indicates the stream ended inside a frame.
	ErrTruncated = errors.New("truncated frame")
)

// Framer encodes and decodes envelopes. It is stateless and safe for
// concurrent use; the zero value uses DefaultMaxFrameSize.
type Framer struct {
	maxFrameSize int
}

// NewFramer returns a Framer enforcing the given total_len cap.
// A non-positive cap selects DefaultMaxFrameSize.
func NewFramer(maxFrameSize int) Framer {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return Framer{maxFrameSize: maxFrameSize}
}

// MaxFrameSize returns the effective total_len cap.
func (f Framer) MaxFrameSize() int {
	if f.maxFrameSize <= 0 {
		return DefaultMaxFrameSize
	}
	return f.maxFrameSize
}

// frameTotal validates the envelope parts and returns total_len.
func (f Framer) frameTotal(clientID string, payload []byte) (int, error) {
	if len(clientID) > MaxClientIDLen {
		return 0, fmt.Errorf("encode envelope: %w (%d bytes)", ErrClientIDTooLong, len(clientID))
	}

	total := 1 + len(clientID) + len(payload)
	if total > f.MaxFrameSize() {
		return 0, fmt.Errorf("encode envelope: %w (%d > %d)", ErrFrameTooLarge, total, f.MaxFrameSize())
	}
	return total, nil
}

// fillFrame writes the wire image into buf, which must hold headerLen+total
// bytes.
func fillFrame(buf []byte, total int, clientID string, payload []byte) {
	binary.BigEndian.PutUint32(buf[:headerLen], uint32(total))
	buf[headerLen] = byte(len(clientID))
	copy(buf[headerLen+1:], clientID)
	copy(buf[headerLen+1+len(clientID):], payload)
}

// Encode builds one envelope addressed to clientID.
func (f Framer) Encode(clientID string, payload []byte) ([]byte, error) {
	total, err := f.frameTotal(clientID, payload)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, headerLen+total)
	fillFrame(buf, total, clientID, payload)
	return buf, nil
}

// EncodeTo builds one envelope in a pooled buffer and writes it to w in a
// single Write call, so a writer serialized by the caller's mutex never
// interleaves frames. Validation errors (ErrClientIDTooLong,
// ErrFrameTooLarge) surface before any byte is written.
func (f Framer) EncodeTo(w io.Writer, clientID string, payload []byte) error {
	total, err := f.frameTotal(clientID, payload)
	if err != nil {
		return err
	}

	buf := bufpool.Get(headerLen + total)
	defer bufpool.Put(buf)

	fillFrame(buf, total, clientID, payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decode reads exactly one envelope from r.
//
// io.EOF is returned untouched when the stream ends cleanly between frames;
// an EOF inside a frame surfaces as ErrTruncated. Any other error means the
// connection should be dropped.
func (f Framer) Decode(r io.Reader) (clientID string, payload []byte, err error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return "", nil, io.EOF
		}
		return "", nil, fmt.Errorf("read frame header: %w: %w", ErrTruncated, err)
	}

	total := int(binary.BigEndian.Uint32(header[:]))
	if total > f.MaxFrameSize() {
		return "", nil, fmt.Errorf("read frame: %w (%d > %d)", ErrFrameTooLarge, total, f.MaxFrameSize())
	}
	if total < 1 {
		return "", nil, fmt.Errorf("read frame: %w (total_len %d)", ErrInvalidHeader, total)
	}

	body := make([]byte, total)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", nil, fmt.Errorf("read frame body: %w: %w", ErrTruncated, err)
	}

	cidLen := int(body[0])
	if cidLen > total-1 {
		return "", nil, fmt.Errorf("read frame: %w (cid_len %d, total_len %d)", ErrInvalidHeader, cidLen, total)
	}

	return string(body[1 : 1+cidLen]), body[1+cidLen:], nil
}
