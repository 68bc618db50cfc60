// Package ingest turns the viewer's inbound transport into a stream of raw
// frames: length-prefixed CBOR frames over TCP, or one encoded image per
// message over a ZeroMQ SUB socket.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/types"
	"roi-stream-go/internal/wire"
)

// RawRecorder stores every received payload before it is decoded.
type RawRecorder interface {
	Record(payload []byte) error
}

type Options struct {
	ReadTimeout time.Duration
	MaxPayload  uint64
	LogEvery    int
	Recorder    RawRecorder
}

func (o Options) logEvery() int {
	if o.LogEvery < 1 {
		return 1
	}
	return o.LogEvery
}

// StreamReceiver decodes frames from a length-prefixed byte stream.
type StreamReceiver struct {
	dec      *wire.Decoder
	recorder RawRecorder
	logEvery int
	closer   io.Closer
	stop     func() bool
}

func NewStreamReceiver(r io.Reader, opts Options) *StreamReceiver {
	return &StreamReceiver{
		dec: wire.NewDecoder(r,
			wire.WithMaxPayload(opts.MaxPayload),
			wire.WithReadTimeout(opts.ReadTimeout),
		),
		recorder: opts.Recorder,
		logEvery: opts.logEvery(),
	}
}

// Connect dials the frame server. Cancelling ctx closes the connection, which
// unblocks a pending Next.
func Connect(ctx context.Context, addr string, opts Options) (*StreamReceiver, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	s := NewStreamReceiver(conn, opts)
	s.closer = conn
	s.stop = context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	return s, nil
}

// Next returns the next decodable frame. Payloads that do not decode are
// logged and skipped; the framing itself is intact so the stream stays in
// sync.
func (s *StreamReceiver) Next(ctx context.Context) (types.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return types.Frame{}, err
		}
		payload, err := s.dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, wire.ErrFraming) {
				return types.Frame{}, err
			}
			return types.Frame{}, &wire.TransportError{Op: "receive", Err: err}
		}
		if s.recorder != nil {
			if err := s.recorder.Record(payload); err != nil {
				logEveryN(s.logEvery, "raw log record failed: %v", err)
			}
		}

		start := time.Now()
		frame, err := codec.DecodeFrame(payload)
		recordDecode(start, err)
		if err != nil {
			logEveryN(s.logEvery, "ingest decode skipped message: %v", err)
			continue
		}
		return frame, nil
	}
}

func (s *StreamReceiver) Close() error {
	if s.stop != nil {
		s.stop()
	}
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

var (
	logCounter     atomic.Uint64
	decodeFailures atomic.Uint64
	decodeCount    atomic.Uint64
	decodeNanos    atomic.Uint64
)

// DecodeFailures counts payloads that arrived intact but did not decode.
func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

func DecodeTiming() (count uint64, nanos uint64) {
	return decodeCount.Load(), decodeNanos.Load()
}

func recordDecode(start time.Time, err error) {
	decodeCount.Add(1)
	decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		decodeFailures.Add(1)
	}
}

func logEveryN(n int, format string, args ...any) {
	if n < 1 {
		n = 1
	}
	if logCounter.Add(1)%uint64(n) == 0 {
		log.Printf(format, args...)
	}
}

func describe(endpoint string, err error) error {
	return fmt.Errorf("%s: %w", endpoint, err)
}
