// Package transport sends captured frames to viewers: length-prefixed CBOR
// frames over TCP to one client at a time, or encoded images over ZeroMQ PUB.
package transport

import (
	"context"
	"errors"
	"log"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"roi-stream-go/internal/capture"
	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/config"
	"roi-stream-go/internal/geometry"
	"roi-stream-go/internal/types"
	"roi-stream-go/internal/wire"
)

type ServerOptions struct {
	// WriteTimeout bounds each message write. Zero disables the deadline.
	WriteTimeout time.Duration
	// OverlayROI, when set, has its resolved corners logged for the first
	// frame of every session.
	OverlayROI *config.ROIConfig
}

// Server streams frames from a capture source to one client at a time.
type Server struct {
	src  capture.Source
	opts ServerOptions

	sessions   atomic.Uint64
	framesSent atomic.Uint64
	bytesSent  atomic.Uint64
}

func NewServer(src capture.Source, opts ServerOptions) *Server {
	return &Server{src: src, opts: opts}
}

// Serve accepts connections sequentially until ctx is cancelled or capture
// fails. A failed send ends only the current session. ln is always closed
// when Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) (err error) {
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer func() {
		stop()
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}()

	log.Printf("frame server listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.sessions.Add(1)
		log.Printf("client connected: %s", conn.RemoteAddr())

		err = s.session(ctx, conn)
		var captureErr *capture.CaptureError
		switch {
		case errors.As(err, &captureErr):
			return err
		case ctx.Err() != nil:
			return nil
		case err != nil:
			log.Printf("session aborted: %v", err)
		default:
			log.Printf("client disconnected: %s", conn.RemoteAddr())
		}
	}
}

// session streams frames to conn until a send or capture failure. conn is
// closed on return.
func (s *Server) session(ctx context.Context, conn net.Conn) (err error) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer func() {
		stop()
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}()

	first := true
	for {
		frame, err := s.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var captureErr *capture.CaptureError
			if errors.As(err, &captureErr) {
				return err
			}
			return &capture.CaptureError{Source: "source", Err: err}
		}
		if first {
			first = false
			s.logOverlay(frame)
		}

		payload, err := codec.EncodeFrame(frame)
		if err != nil {
			return &capture.CaptureError{Source: "source", Err: err}
		}
		if s.opts.WriteTimeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
				return &wire.TransportError{Op: "send", Err: err}
			}
		}
		if err := wire.WriteMessage(conn, payload); err != nil {
			return &wire.TransportError{Op: "send", Err: err}
		}
		s.framesSent.Add(1)
		s.bytesSent.Add(uint64(wire.PrefixSize + len(payload)))
	}
}

func (s *Server) logOverlay(frame types.Frame) {
	if s.opts.OverlayROI == nil {
		return
	}
	logOverlay(*s.opts.OverlayROI, frame)
}

// logOverlay logs where the ROI lands on frame: the rotated box corners and
// the four border points the viewer will crop from.
func logOverlay(roi config.ROIConfig, frame types.Frame) {
	res, err := geometry.Resolve(roi, geometry.Dimensions{Rows: frame.Rows, Cols: frame.Cols})
	if err != nil {
		log.Printf("roi overlay unavailable: %v", err)
		return
	}
	log.Printf("roi overlay on %dx%d: box=%v tilt=%s left=%v top=%v right=%v bottom=%v",
		frame.Cols, frame.Rows, res.Corners, res.Tilt,
		res.Border.Left, res.Border.Top, res.Border.Right, res.Border.Bottom)
}

// Stats reports sessions accepted, frames sent and bytes written so far.
func (s *Server) Stats() (sessions, frames, bytes uint64) {
	return s.sessions.Load(), s.framesSent.Load(), s.bytesSent.Load()
}
