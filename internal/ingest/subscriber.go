package ingest

import (
	"context"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/types"
	"roi-stream-go/internal/wire"
)

// pollInterval bounds how long a receive blocks before ctx is checked again.
const pollInterval = 250 * time.Millisecond

// Subscriber receives one encoded image per ZeroMQ message. Message
// boundaries come from the transport, so there is no length prefix.
type Subscriber struct {
	socket      *zmq4.Socket
	endpoint    string
	recorder    RawRecorder
	logEvery    int
	readTimeout time.Duration
	nextID      int
}

func Subscribe(endpoint string, opts Options) (*Subscriber, error) {
	socket, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, err
	}
	if err := socket.SetSubscribe(""); err != nil {
		_ = socket.Close()
		return nil, describe(endpoint, err)
	}
	if err := socket.SetRcvtimeo(pollInterval); err != nil {
		_ = socket.Close()
		return nil, describe(endpoint, err)
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, describe(endpoint, err)
	}
	return &Subscriber{
		socket:      socket,
		endpoint:    endpoint,
		recorder:    opts.Recorder,
		logEvery:    opts.logEvery(),
		readTimeout: opts.ReadTimeout,
	}, nil
}

// Next blocks until a decodable image arrives, ctx is cancelled or no
// message arrived within the read timeout.
func (s *Subscriber) Next(ctx context.Context) (types.Frame, error) {
	waitStart := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return types.Frame{}, err
		}
		msg, err := s.socket.RecvBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				if s.readTimeout > 0 && time.Since(waitStart) > s.readTimeout {
					return types.Frame{}, &wire.TransportError{Op: "receive", Err: describe(s.endpoint, syscall.ETIMEDOUT)}
				}
				continue
			}
			return types.Frame{}, &wire.TransportError{Op: "receive", Err: describe(s.endpoint, err)}
		}
		if s.recorder != nil {
			if err := s.recorder.Record(msg); err != nil {
				logEveryN(s.logEvery, "raw log record failed: %v", err)
			}
		}

		start := time.Now()
		frame, err := codec.DecodeImage(msg)
		recordDecode(start, err)
		if err != nil {
			logEveryN(s.logEvery, "ingest decode skipped message: %v", err)
			continue
		}
		frame.FrameID = s.nextID
		frame.Timestamp = float64(time.Now().UnixNano()) / 1e9
		s.nextID++
		return frame, nil
	}
}

func (s *Subscriber) Close() error {
	return s.socket.Close()
}
