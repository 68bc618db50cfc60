package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"roi-stream-go/internal/capture"
	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/config"
	"roi-stream-go/internal/transport"
)

func main() {
	var (
		listen       = flag.String("listen", ":5000", "TCP address for stream mode")
		mode         = flag.String("mode", config.ModeStream, "Transport: stream (length-prefixed TCP) or pubsub (ZMQ PUB)")
		pubEndpoint  = flag.String("pub-endpoint", "tcp://*:5556", "ZMQ endpoint to bind in pubsub mode")
		sourceKind   = flag.String("source", "synthetic", "Frame source: synthetic or image")
		imagePath    = flag.String("image", "", "Image file for -source image")
		width        = flag.Int("width", 0, "Frame width (synthetic, 0 means 640) or resize width (image, 0 keeps size)")
		height       = flag.Int("height", 0, "Frame height (synthetic, 0 means 480) or resize height (image, 0 keeps size)")
		fps          = flag.Float64("fps", 30, "Frames per second, 0 for as fast as possible")
		writeTimeout = flag.Duration("write-timeout", 5*time.Second, "Per-message write deadline in stream mode, 0 disables")
		encoding     = flag.String("encoding", "jpeg", "Image encoding in pubsub mode: jpeg or png")
		roiPath      = flag.String("roi", "rcrop_parameters.json", "ROI parameters used by -overlay-log")
		overlayLog   = flag.Bool("overlay-log", false, "Log where the ROI lands on the first frame of each session")
	)
	flag.Parse()

	if *mode != config.ModeStream && *mode != config.ModePubSub {
		log.Fatalf("unknown mode %q", *mode)
	}

	var overlayROI *config.ROIConfig
	if *overlayLog {
		roi, err := config.LoadROI(*roiPath)
		if err != nil {
			log.Fatalf("load roi: %v", err)
		}
		overlayROI = &roi
	}

	src, err := openSource(*sourceKind, *imagePath, *width, *height, *fps)
	if err != nil {
		log.Fatalf("open source: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mode == config.ModePubSub {
		err = servePubSub(ctx, src, *pubEndpoint, *encoding, overlayROI)
	} else {
		err = serveStream(ctx, src, *listen, transport.ServerOptions{
			WriteTimeout: *writeTimeout,
			OverlayROI:   overlayROI,
		})
	}
	if err != nil {
		log.Fatalf("server stopped: %v", err)
	}
	log.Printf("server stopped")
}

// Synthetic frame size when -width or -height is left at zero.
const (
	syntheticWidth  = 640
	syntheticHeight = 480
)

func openSource(kind, imagePath string, width, height int, fps float64) (capture.Source, error) {
	switch kind {
	case "synthetic":
		if width == 0 {
			width = syntheticWidth
		}
		if height == 0 {
			height = syntheticHeight
		}
		return capture.NewSynthetic(width, height, fps)
	case "image":
		if imagePath == "" {
			return nil, fmt.Errorf("-image is required for -source image")
		}
		return capture.NewStill(imagePath, width, height, fps)
	default:
		return nil, fmt.Errorf("unknown source %q", kind)
	}
}

func serveStream(ctx context.Context, src capture.Source, addr string, opts transport.ServerOptions) (err error) {
	defer func() {
		err = multierr.Append(err, src.Close())
	}()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := transport.NewServer(src, opts)
	err = srv.Serve(ctx, ln)
	sessions, frames, bytes := srv.Stats()
	log.Printf("served %d sessions, %d frames, %d bytes", sessions, frames, bytes)
	return err
}

func servePubSub(ctx context.Context, src capture.Source, endpoint, encoding string, overlayROI *config.ROIConfig) (err error) {
	defer func() {
		err = multierr.Append(err, src.Close())
	}()
	format, err := codec.ParseFormat(encoding)
	if err != nil {
		return err
	}
	pub, err := transport.NewPublisher(endpoint, format, overlayROI)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, pub.Close())
	}()
	err = pub.Run(ctx, src)
	log.Printf("published %d frames", pub.Sent())
	return err
}
