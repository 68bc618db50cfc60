package transport

import (
	"context"
	"errors"
	"log"

	"github.com/disintegration/imaging"
	"github.com/pebbe/zmq4"

	"roi-stream-go/internal/capture"
	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/config"
	"roi-stream-go/internal/wire"
)

// Publisher broadcasts one encoded image per ZeroMQ message. Subscribers
// that are not connected miss frames; nothing is queued for them.
type Publisher struct {
	socket     *zmq4.Socket
	endpoint   string
	format     imaging.Format
	overlayROI *config.ROIConfig
	sent       uint64
}

func NewPublisher(endpoint string, format imaging.Format, overlayROI *config.ROIConfig) (*Publisher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, err
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	return &Publisher{socket: socket, endpoint: endpoint, format: format, overlayROI: overlayROI}, nil
}

// Run publishes frames from src until ctx is cancelled or capture fails.
func (p *Publisher) Run(ctx context.Context, src capture.Source) error {
	log.Printf("publishing %s frames on %s", codec.MimeType(p.format), p.endpoint)
	for {
		frame, err := src.Next(ctx)
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
		if p.sent == 0 && p.overlayROI != nil {
			logOverlay(*p.overlayROI, frame)
		}

		data, err := codec.EncodeImage(frame, p.format)
		if err != nil {
			return &capture.CaptureError{Source: "source", Err: err}
		}
		if _, err := p.socket.SendBytes(data, 0); err != nil {
			return &wire.TransportError{Op: "publish", Err: err}
		}
		p.sent++
	}
}

func (p *Publisher) Sent() uint64 {
	return p.sent
}

func (p *Publisher) Close() error {
	return p.socket.Close()
}
