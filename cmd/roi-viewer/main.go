package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"roi-stream-go/internal/config"
	"roi-stream-go/internal/ingest"
	"roi-stream-go/internal/output"
	"roi-stream-go/internal/processing"
	"roi-stream-go/internal/server"
	"roi-stream-go/internal/types"
	"roi-stream-go/internal/wire"
)

// previewWidth caps the width of crops pushed to the browser.
const previewWidth = 960

type metrics struct {
	cropsBroadcast  atomic.Uint64
	previewErrors   atomic.Uint64
	snapshotsSaved  atomic.Uint64
	snapshotErrors  atomic.Uint64
	processCount    atomic.Uint64
	processNanos    atomic.Uint64
	lastFrameID     atomic.Int64
	lastCropUnixSec atomic.Int64
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"crops_broadcast_total": m.cropsBroadcast.Load(),
		"preview_err_total":     m.previewErrors.Load(),
		"snapshots_saved_total": m.snapshotsSaved.Load(),
		"snapshot_err_total":    m.snapshotErrors.Load(),
		"process_total":         m.processCount.Load(),
		"process_nanos_total":   m.processNanos.Load(),
		"last_frame_id":         m.lastFrameID.Load(),
	}
}

type closer interface {
	Close() error
}

type source interface {
	processing.Source
	closer
}

func main() {
	var (
		connect        = flag.String("connect", "127.0.0.1:5000", "Frame server address in stream mode")
		mode           = flag.String("mode", config.ModeStream, "Transport: stream (length-prefixed TCP) or pubsub (ZMQ SUB)")
		subEndpoint    = flag.String("sub-endpoint", "tcp://localhost:5556", "ZMQ endpoint to connect in pubsub mode")
		roiPath        = flag.String("roi", "rcrop_parameters.json", "ROI parameters file")
		readTimeout    = flag.Duration("read-timeout", 10*time.Second, "Give up when no data arrives for this long, 0 waits forever")
		maxPayload     = flag.Uint64("max-payload", wire.DefaultMaxPayload, "Largest accepted frame payload in bytes")
		port           = flag.Int("port", 8889, "HTTP port for the web UI, 0 disables it")
		uiRate         = flag.Duration("ui-rate", config.DefaultUIRate, "UI update interval for websocket clients")
		outputDir      = flag.String("output-dir", "output", "Directory for saved crops")
		saveEvery      = flag.Int("save-every", 0, "Save every Nth crop as PNG, 0 disables")
		rawLogEnabled  = flag.Bool("raw-log", false, "Write every received payload to disk")
		rawLogDir      = flag.String("raw-log-dir", "rawlog", "Directory for raw ingest logs")
		ingestLogEvery = flag.Int("ingest-log-every", 100, "Log every Nth ingest error")
	)
	flag.Parse()

	endpoint := *connect
	if *mode == config.ModePubSub {
		endpoint = *subEndpoint
	} else if *mode != config.ModeStream {
		log.Fatalf("unknown mode %q", *mode)
	}

	cfg := config.AppConfig{
		Port:           *port,
		Mode:           *mode,
		Endpoint:       endpoint,
		ROIPath:        *roiPath,
		ReadTimeout:    *readTimeout,
		MaxPayload:     *maxPayload,
		UIRate:         *uiRate,
		OutputDir:      *outputDir,
		SaveEvery:      *saveEvery,
		RawLogEnabled:  *rawLogEnabled,
		RawLogDir:      *rawLogDir,
		IngestLogEvery: *ingestLogEvery,
	}
	cfg.ApplyDefaults()

	roi, err := config.LoadROI(cfg.ROIPath)
	if err != nil {
		log.Fatalf("load roi: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder *output.RawLogWriter
	opts := ingest.Options{
		ReadTimeout: cfg.ReadTimeout,
		MaxPayload:  cfg.MaxPayload,
		LogEvery:    cfg.IngestLogEvery,
	}
	if cfg.RawLogEnabled {
		recorder, err = output.NewRawLogWriter(cfg.RawLogDir, "raw_frames")
		if err != nil {
			log.Fatalf("failed to start raw log: %v", err)
		}
		opts.Recorder = recorder
		log.Printf("recording raw payloads to %s", recorder.Path())
	}

	src, err := openSource(ctx, cfg, opts)
	if err != nil {
		log.Fatalf("failed to start ingest: %v", err)
	}
	log.Printf("receiving frames from %s (%s)", cfg.Endpoint, cfg.Mode)

	var metrics metrics
	var latestMu sync.Mutex
	var latestPending bool
	var latestMessage *types.CropMessage
	agg := processing.NewAggregator()
	cropCount := func() int {
		latestMu.Lock()
		defer latestMu.Unlock()
		return agg.FrameCount()
	}

	writer := output.NewCropWriter(cfg.OutputDir, processing.Timestamp(), cfg.SaveEvery)
	session := processing.NewSession(roi)

	sink := func(crop types.Frame) error {
		metrics.lastFrameID.Store(int64(crop.FrameID))
		metrics.lastCropUnixSec.Store(time.Now().Unix())
		latestMu.Lock()
		agg.AddFrame(crop)
		latestPending = true
		latestMu.Unlock()

		path, err := writer.Add(crop)
		if err != nil {
			metrics.snapshotErrors.Add(1)
			log.Printf("crop snapshot failed: %v", err)
		} else if path != "" {
			metrics.snapshotsSaved.Add(1)
		}
		return nil
	}

	timedSource := &timingSource{src: src, metrics: &metrics}

	pipelineDone := make(chan error, 1)
	go func() {
		err := processing.Run(ctx, timedSource, session, sink)
		pipelineDone <- err
		stop()
	}()

	uiMessages := make(chan any, 4)
	go func() {
		defer close(uiMessages)
		ticker := time.NewTicker(cfg.UIRate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				latestMu.Lock()
				crop, ok := agg.Latest()
				pending := ok && latestPending
				latestPending = false
				latestMu.Unlock()
				if !pending {
					continue
				}
				message, err := server.CropMessage(crop, previewWidth)
				if err != nil {
					metrics.previewErrors.Add(1)
					continue
				}
				latestMu.Lock()
				latestMessage = &message
				latestMu.Unlock()
				select {
				case uiMessages <- message:
					metrics.cropsBroadcast.Add(1)
				default:
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot := metrics.snapshot()
				log.Printf("viewer stats: crops=%d saved=%v decode_failures=%v last_frame=%v",
					cropCount(),
					snapshot["snapshots_saved_total"],
					ingest.DecodeFailures(),
					snapshot["last_frame_id"],
				)
			}
		}
	}()

	statusFn := func() map[string]any {
		payload := map[string]any{
			"mode":     cfg.Mode,
			"endpoint": cfg.Endpoint,
			"stream":   "waiting",
		}
		switch st := session.State().(type) {
		case processing.Ready:
			payload["stream"] = "receiving"
			payload["frame_width"] = st.Resolution.Dims.Cols
			payload["frame_height"] = st.Resolution.Dims.Rows
			payload["tilt"] = st.Resolution.Tilt.String()
			w, h := st.Cropper.Size()
			payload["crop_width"] = w
			payload["crop_height"] = h
		}
		latestMu.Lock()
		if stats := agg.StatsCopy(); stats != nil {
			payload["crop_stats"] = stats
		}
		latestMu.Unlock()
		if ts := metrics.lastCropUnixSec.Load(); ts > 0 {
			payload["last_crop"] = time.Unix(ts, 0).Format(time.RFC3339)
		}
		metricsPayload := metrics.snapshot()
		metricsPayload["crops_produced_total"] = cropCount()
		metricsPayload["ingest_decode_failures_total"] = ingest.DecodeFailures()
		decodeCount, decodeNanos := ingest.DecodeTiming()
		metricsPayload["ingest_decode_total"] = decodeCount
		metricsPayload["ingest_decode_nanos_total"] = decodeNanos
		payload["metrics"] = metricsPayload
		return payload
	}

	snapshotFn := func() any {
		latestMu.Lock()
		defer latestMu.Unlock()
		if latestMessage == nil {
			return nil
		}
		return *latestMessage
	}

	if cfg.Port > 0 {
		log.Printf("Starting web UI at http://localhost:%d\n", cfg.Port)
		if err := server.Run(ctx, cfg, uiMessages, statusFn, snapshotFn); err != nil {
			log.Printf("web ui stopped: %v", err)
			stop()
		}
	}

	pipelineErr := <-pipelineDone
	closeErr := src.Close()
	if recorder != nil {
		closeErr = multierr.Append(closeErr, recorder.Close())
	}
	if closeErr != nil {
		log.Printf("close failed: %v", closeErr)
	}
	if pipelineErr != nil {
		log.Fatalf("viewer stopped: %v", pipelineErr)
	}
	log.Printf("viewer stopped after %d crops", cropCount())
}

func openSource(ctx context.Context, cfg config.AppConfig, opts ingest.Options) (source, error) {
	if cfg.Mode == config.ModePubSub {
		return ingest.Subscribe(cfg.Endpoint, opts)
	}
	return ingest.Connect(ctx, cfg.Endpoint, opts)
}

// timingSource times the crop stage: from one frame's arrival to the next
// request, which is the time spent in Session.Process and the sink.
type timingSource struct {
	src         processing.Source
	metrics     *metrics
	lastFrameAt time.Time
	pending     bool
}

func (t *timingSource) Next(ctx context.Context) (types.Frame, error) {
	if t.pending {
		t.metrics.processCount.Add(1)
		t.metrics.processNanos.Add(uint64(time.Since(t.lastFrameAt).Nanoseconds()))
		t.pending = false
	}
	frame, err := t.src.Next(ctx)
	if err == nil {
		t.lastFrameAt = time.Now()
		t.pending = true
	}
	return frame, err
}
