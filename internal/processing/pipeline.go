package processing

import (
	"context"
	"errors"
	"io"
	"log"

	"roi-stream-go/internal/types"
	"roi-stream-go/internal/wire"
)

// Source yields raw frames in delivery order.
type Source interface {
	Next(ctx context.Context) (types.Frame, error)
}

// Sink receives each rectified crop. An error from a sink stops the loop.
type Sink func(crop types.Frame) error

// Run is the viewer loop: receive, crop, hand off. It returns nil when the
// stream ends, the peer disconnects or ctx is cancelled; framing, decode and
// geometry errors are returned.
func Run(ctx context.Context, src Source, session *Session, sink Sink) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := src.Next(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF):
				log.Printf("stream closed by peer")
				return nil
			case wire.IsDisconnect(err):
				log.Printf("stream ended: %v", err)
				return nil
			}
			return err
		}

		crop, err := session.Process(frame)
		if err != nil {
			return err
		}
		if sink == nil {
			continue
		}
		if err := sink(crop); err != nil {
			return err
		}
	}
}
