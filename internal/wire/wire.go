// Package wire implements the length-prefixed message framing used on the
// frame stream: every message is an 8-byte little-endian unsigned length
// followed by exactly that many payload bytes. There is no marker, checksum
// or version field, so a bad prefix cannot be recovered from.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	PrefixSize = 8

	// DefaultMaxPayload bounds a single message. A prefix above the bound is
	// treated as stream corruption.
	DefaultMaxPayload uint64 = 64 << 20

	// MaxPayloadLimit is the largest bound a Decoder accepts, so that prefix
	// plus payload always fits in an int.
	MaxPayloadLimit uint64 = math.MaxInt - PrefixSize

	readChunk = 32 * 1024
)

var ErrFraming = errors.New("wire framing error")

// AppendMessage appends the prefix and payload to dst.
func AppendMessage(dst, payload []byte) []byte {
	var prefix [PrefixSize]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(len(payload)))
	dst = append(dst, prefix[:]...)
	return append(dst, payload...)
}

// WriteMessage sends prefix and payload with a single Write call.
func WriteMessage(w io.Writer, payload []byte) error {
	msg := AppendMessage(make([]byte, 0, PrefixSize+len(payload)), payload)
	n, err := w.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return io.ErrShortWrite
	}
	return nil
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Decoder reassembles messages from a byte stream, however the stream is
// chunked by the underlying reader.
type Decoder struct {
	r           io.Reader
	buf         []byte
	chunk       []byte
	maxPayload  uint64
	readTimeout time.Duration
	eof         bool
}

type Option func(*Decoder)

// WithMaxPayload sets the payload bound. Zero keeps the default; values
// above MaxPayloadLimit are lowered to it.
func WithMaxPayload(n uint64) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxPayload = min(n, MaxPayloadLimit)
		}
	}
}

// WithReadTimeout sets a deadline before every read when the reader
// supports SetReadDeadline (net.Conn does). Zero disables it.
func WithReadTimeout(timeout time.Duration) Option {
	return func(d *Decoder) {
		d.readTimeout = timeout
	}
}

func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:          r,
		chunk:      make([]byte, readChunk),
		maxPayload: DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the payload of the next message. It returns io.EOF when the
// stream ends on a message boundary and io.ErrUnexpectedEOF when it ends
// inside a message. A prefix above the payload bound yields ErrFraming.
func (d *Decoder) Next() ([]byte, error) {
	if err := d.fill(PrefixSize); err != nil {
		if err == io.EOF && len(d.buf) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	size := binary.LittleEndian.Uint64(d.buf[:PrefixSize])
	if size > d.maxPayload {
		return nil, fmt.Errorf("%w: length prefix %d exceeds limit %d", ErrFraming, size, d.maxPayload)
	}

	total := PrefixSize + int(size)
	if err := d.fill(total); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := make([]byte, size)
	copy(payload, d.buf[PrefixSize:total])
	d.buf = append(d.buf[:0], d.buf[total:]...)
	return payload, nil
}

// Buffered is the number of bytes read from the stream but not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) fill(n int) error {
	for len(d.buf) < n {
		if d.eof {
			return io.EOF
		}
		if d.readTimeout > 0 {
			if dl, ok := d.r.(deadliner); ok {
				if err := dl.SetReadDeadline(time.Now().Add(d.readTimeout)); err != nil {
					return err
				}
			}
		}
		k, err := d.r.Read(d.chunk)
		d.buf = append(d.buf, d.chunk[:k]...)
		switch {
		case err == io.EOF:
			d.eof = true
		case err != nil:
			return err
		case k == 0:
			// zero-length read means the peer is gone
			d.eof = true
		}
	}
	return nil
}
