package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawFrame builds an envelope by hand so decode tests do not depend on Encode.
func rawFrame(cid string, payload []byte) []byte {
	total := 1 + len(cid) + len(payload)
	buf := make([]byte, 4+total)
	binary.BigEndian.PutUint32(buf, uint32(total))
	buf[4] = byte(len(cid))
	copy(buf[5:], cid)
	copy(buf[5+len(cid):], payload)
	return buf
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := NewFramer(0)

	tests := []struct {
		name    string
		cid     string
		payload []byte
	}{
		{"UUIDClientID", "f47ac10b-58cc-4372-a567-0e02b2c3d479", []byte(`{"type":"login"}`)},
		{"EmptyPayload", "client-1", nil},
		{"EmptyClientID", "", []byte("payload without cid")},
		{"BinaryPayload", "c", []byte{0x00, 0xff, 0x13, 0x37, 0x00}},
		{"MaxLengthClientID", strings.Repeat("x", MaxClientIDLen), []byte("p")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := f.Encode(tt.cid, tt.payload)
			require.NoError(t, err)

			// total_len must describe exactly the bytes after the length word
			total := binary.BigEndian.Uint32(frame[:4])
			assert.Equal(t, len(frame)-4, int(total))
			assert.Equal(t, 1+len(tt.cid)+len(tt.payload), int(total))

			cid, payload, err := f.Decode(bytes.NewReader(frame))
			require.NoError(t, err)
			assert.Equal(t, tt.cid, cid)
			if len(tt.payload) == 0 {
				assert.Empty(t, payload)
			} else {
				assert.Equal(t, tt.payload, payload)
			}
		})
	}
}

func TestEncodeRejectsOversizedClientID(t *testing.T) {
	f := NewFramer(0)

	_, err := f.Encode(strings.Repeat("x", MaxClientIDLen+1), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClientIDTooLong)
}

func TestFrameSizeCap(t *testing.T) {
	const maxSize = 64
	f := NewFramer(maxSize)

	t.Run("EncodeAtCapSucceeds", func(t *testing.T) {
		// total = 1 + len(cid) + len(payload) lands exactly on the cap
		payload := make([]byte, maxSize-1-4)
		frame, err := f.Encode("abcd", payload)
		require.NoError(t, err)
		assert.Equal(t, 4+maxSize, len(frame))
	})

	t.Run("EncodeAboveCapFails", func(t *testing.T) {
		payload := make([]byte, maxSize-4) // one byte too many
		_, err := f.Encode("abcd", payload)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("DecodeAtCapSucceeds", func(t *testing.T) {
		frame := rawFrame("abcd", make([]byte, maxSize-1-4))
		cid, payload, err := f.Decode(bytes.NewReader(frame))
		require.NoError(t, err)
		assert.Equal(t, "abcd", cid)
		assert.Len(t, payload, maxSize-1-4)
	})

	t.Run("DecodeAboveCapFails", func(t *testing.T) {
		frame := rawFrame("abcd", make([]byte, maxSize-4))
		_, _, err := f.Decode(bytes.NewReader(frame))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})
}

func TestDecodeMalformedHeader(t *testing.T) {
	f := NewFramer(0)

	t.Run("ZeroTotalLen", func(t *testing.T) {
		frame := []byte{0, 0, 0, 0}
		_, _, err := f.Decode(bytes.NewReader(frame))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidHeader)
	})

	t.Run("ClientIDLenExceedsFrame", func(t *testing.T) {
		// total_len 3 but cid_len claims 10 bytes
		frame := []byte{0, 0, 0, 3, 10, 'a', 'b'}
		_, _, err := f.Decode(bytes.NewReader(frame))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidHeader)
	})
}

func TestDecodeTruncatedStream(t *testing.T) {
	f := NewFramer(0)
	frame, err := f.Encode("client-9", []byte("hello"))
	require.NoError(t, err)

	t.Run("InsideHeader", func(t *testing.T) {
		_, _, err := f.Decode(bytes.NewReader(frame[:2]))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("InsideBody", func(t *testing.T) {
		_, _, err := f.Decode(bytes.NewReader(frame[:len(frame)-3]))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("CleanEOFBetweenFrames", func(t *testing.T) {
		_, _, err := f.Decode(bytes.NewReader(nil))
		assert.Equal(t, io.EOF, err)
	})
}

func TestDecodeSequentialFrames(t *testing.T) {
	f := NewFramer(0)

	var stream bytes.Buffer
	first, err := f.Encode("cid-1", []byte("one"))
	require.NoError(t, err)
	second, err := f.Encode("cid-2", []byte("two"))
	require.NoError(t, err)
	stream.Write(first)
	stream.Write(second)

	cid, payload, err := f.Decode(&stream)
	require.NoError(t, err)
	assert.Equal(t, "cid-1", cid)
	assert.Equal(t, "one", string(payload))

	cid, payload, err = f.Decode(&stream)
	require.NoError(t, err)
	assert.Equal(t, "cid-2", cid)
	assert.Equal(t, "two", string(payload))

	_, _, err = f.Decode(&stream)
	assert.Equal(t, io.EOF, err)
}

// countingWriter records Write calls so tests can assert one frame means one
// syscall-visible write.
type countingWriter struct {
	buf    bytes.Buffer
	writes int
	err    error
}

func (w *countingWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.writes++
	return w.buf.Write(p)
}

func TestEncodeTo(t *testing.T) {
	f := NewFramer(0)

	t.Run("MatchesEncode", func(t *testing.T) {
		frame, err := f.Encode("client-7", []byte(`{"type":"refresh"}`))
		require.NoError(t, err)

		var w countingWriter
		require.NoError(t, f.EncodeTo(&w, "client-7", []byte(`{"type":"refresh"}`)))
		assert.Equal(t, frame, w.buf.Bytes())
	})

	t.Run("SingleWriteCall", func(t *testing.T) {
		var w countingWriter
		require.NoError(t, f.EncodeTo(&w, "client-7", []byte("payload")))
		assert.Equal(t, 1, w.writes)
	})

	t.Run("ValidationFailsBeforeWriting", func(t *testing.T) {
		var w countingWriter
		err := f.EncodeTo(&w, strings.Repeat("x", MaxClientIDLen+1), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrClientIDTooLong)
		assert.Zero(t, w.writes)
		assert.Zero(t, w.buf.Len())
	})

	t.Run("FrameCapFailsBeforeWriting", func(t *testing.T) {
		small := NewFramer(16)
		var w countingWriter
		err := small.EncodeTo(&w, "abcd", make([]byte, 32))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
		assert.Zero(t, w.buf.Len())
	})

	t.Run("WriteErrorSurfaces", func(t *testing.T) {
		w := &countingWriter{err: io.ErrClosedPipe}
		err := f.EncodeTo(w, "client-7", []byte("payload"))
		require.Error(t, err)
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	})

	t.Run("DecodesToSameEnvelope", func(t *testing.T) {
		var stream bytes.Buffer
		require.NoError(t, f.EncodeTo(&stream, "client-7", []byte("chunk")))

		cid, payload, err := f.Decode(&stream)
		require.NoError(t, err)
		assert.Equal(t, "client-7", cid)
		assert.Equal(t, "chunk", string(payload))
	})
}

func TestZeroValueFramerUsesDefaultCap(t *testing.T) {
	var f Framer
	assert.Equal(t, DefaultMaxFrameSize, f.MaxFrameSize())

	frame, err := f.Encode("c", []byte("ok"))
	require.NoError(t, err)

	cid, payload, err := f.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, "c", cid)
	assert.Equal(t, "ok", string(payload))
}
