package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
	"testing/iotest"
)

// chunkReader hands out data in the given chunk sizes, then the final
// result: io.EOF, or a zero-length read with a nil error if zeroRead is set.
type chunkReader struct {
	data     []byte
	sizes    []int
	zeroRead bool
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		if c.zeroRead {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := len(c.data)
	if len(c.sizes) > 0 {
		n = c.sizes[0]
		c.sizes = c.sizes[1:]
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + 3)
	}
	return out
}

func TestAppendMessageLayout(t *testing.T) {
	msg := AppendMessage(nil, []byte{0xaa, 0xbb, 0xcc})
	want := []byte{3, 0, 0, 0, 0, 0, 0, 0, 0xaa, 0xbb, 0xcc}
	if !bytes.Equal(msg, want) {
		t.Fatalf("unexpected layout: got %v want %v", msg, want)
	}
}

func TestRoundTripAcrossChunkings(t *testing.T) {
	payloads := [][]byte{
		{},
		pattern(1),
		pattern(PrefixSize),
		pattern(readChunk*3 + 17),
	}
	var stream []byte
	for _, p := range payloads {
		stream = AppendMessage(stream, p)
	}

	readers := map[string]func() io.Reader{
		"whole":     func() io.Reader { return bytes.NewReader(stream) },
		"one byte":  func() io.Reader { return iotest.OneByteReader(bytes.NewReader(stream)) },
		"half":      func() io.Reader { return iotest.HalfReader(bytes.NewReader(stream)) },
		"data+eof":  func() io.Reader { return iotest.DataErrReader(bytes.NewReader(stream)) },
		"irregular": func() io.Reader { return &chunkReader{data: stream, sizes: []int{3, 5, 1, 9, 2, 4096, 11}} },
	}

	for name, mk := range readers {
		dec := NewDecoder(mk())
		for i, want := range payloads {
			got, err := dec.Next()
			if err != nil {
				t.Fatalf("%s: message %d: %v", name, i, err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("%s: message %d mismatch: got %d bytes want %d", name, i, len(got), len(want))
			}
		}
		if _, err := dec.Next(); err != io.EOF {
			t.Fatalf("%s: expected io.EOF after last message, got %v", name, err)
		}
	}
}

func TestPrefixSplitAcrossReads(t *testing.T) {
	payload := []byte("frame-payload")
	stream := AppendMessage(nil, payload)
	dec := NewDecoder(&chunkReader{data: stream, sizes: []int{3, 5, len(payload)}})

	got, err := dec.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("unexpected payload %q", got)
	}
	if dec.Buffered() != 0 {
		t.Fatalf("expected empty buffer, have %d bytes", dec.Buffered())
	}
}

func TestMessagesAreNotMerged(t *testing.T) {
	stream := AppendMessage(nil, []byte("first"))
	stream = AppendMessage(stream, []byte("second"))
	dec := NewDecoder(bytes.NewReader(stream))

	first, err := dec.Next()
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if string(first) != "first" {
		t.Fatalf("unexpected first payload %q", first)
	}
	if dec.Buffered() != PrefixSize+len("second") {
		t.Fatalf("unexpected buffered bytes: %d", dec.Buffered())
	}
	second, err := dec.Next()
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if string(second) != "second" {
		t.Fatalf("unexpected second payload %q", second)
	}
}

func TestZeroLengthReadEndsStream(t *testing.T) {
	stream := AppendMessage(nil, []byte("only"))
	dec := NewDecoder(&chunkReader{data: stream, zeroRead: true})

	if _, err := dec.Next(); err != nil {
		t.Fatalf("first message: %v", err)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestTruncatedMessage(t *testing.T) {
	stream := AppendMessage(nil, pattern(100))

	dec := NewDecoder(&chunkReader{data: stream[:PrefixSize+40], zeroRead: true})
	if _, err := dec.Next(); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF inside payload, got %v", err)
	}

	dec = NewDecoder(bytes.NewReader(stream[:5]))
	if _, err := dec.Next(); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF inside prefix, got %v", err)
	}
}

func TestOversizedPrefixIsFraming(t *testing.T) {
	var prefix [PrefixSize]byte
	binary.LittleEndian.PutUint64(prefix[:], 1<<40)
	dec := NewDecoder(bytes.NewReader(prefix[:]), WithMaxPayload(1<<20))

	_, err := dec.Next()
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestHugePrefixWithUnboundedLimitIsFraming(t *testing.T) {
	for _, size := range []uint64{1 << 63, math.MaxUint64, MaxPayloadLimit + 1} {
		var prefix [PrefixSize]byte
		binary.LittleEndian.PutUint64(prefix[:], size)
		dec := NewDecoder(bytes.NewReader(prefix[:]), WithMaxPayload(math.MaxUint64))

		_, err := dec.Next()
		if !errors.Is(err, ErrFraming) {
			t.Fatalf("prefix %d: expected ErrFraming, got %v", size, err)
		}
	}
}

func TestReadErrorIsReturned(t *testing.T) {
	boom := errors.New("connection reset")
	dec := NewDecoder(iotest.ErrReader(boom))
	if _, err := dec.Next(); !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, []byte("abc")); err != nil {
		t.Fatalf("WriteMessage error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), AppendMessage(nil, []byte("abc"))) {
		t.Fatalf("unexpected bytes %v", buf.Bytes())
	}
	if err := WriteMessage(shortWriter{}, []byte("abc")); err != io.ErrShortWrite {
		t.Fatalf("expected io.ErrShortWrite, got %v", err)
	}
}
