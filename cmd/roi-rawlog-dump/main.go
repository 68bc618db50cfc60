package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fxamacker/cbor/v2"

	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/output"
	"roi-stream-go/internal/types"
)

func main() {
	var (
		path   = flag.String("path", "", "Path to rawlog .bin file")
		limit  = flag.Int("limit", 10, "Number of records to dump, 0 for all")
		pngDir = flag.String("png-dir", "", "Write each decoded frame as a PNG into this directory")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer f.Close()

	records, err := output.NewRawLogReader(f)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	if *pngDir != "" {
		if err := os.MkdirAll(*pngDir, 0o755); err != nil {
			log.Fatalf("create png dir: %v", err)
		}
	}

	for count := 0; *limit <= 0 || count < *limit; count++ {
		rec, err := records.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Fatalf("read record: %v", err)
		}

		frame, kind, err := decode(rec.Payload)
		if err != nil {
			log.Printf("record %d: %v", count, err)
			describeCBOR(rec.Payload)
			continue
		}
		fmt.Printf("record %d received=%s size=%d kind=%s frame_id=%d timestamp=%.6f shape=%dx%dx%d\n",
			count, rec.Received.Format(time.RFC3339Nano), len(rec.Payload), kind,
			frame.FrameID, frame.Timestamp, frame.Cols, frame.Rows, frame.Channels)

		if *pngDir == "" {
			continue
		}
		img, err := codec.ToImage(frame)
		if err != nil {
			log.Printf("record %d: %v", count, err)
			continue
		}
		out := filepath.Join(*pngDir, fmt.Sprintf("record_%06d.png", count))
		if err := imaging.Save(img, out); err != nil {
			log.Printf("record %d: save png: %v", count, err)
		}
	}
}

// decode accepts both payload kinds a viewer records: CBOR frames from
// stream mode and encoded images from pubsub mode.
func decode(payload []byte) (types.Frame, string, error) {
	frame, err := codec.DecodeFrame(payload)
	if err == nil {
		return frame, "cbor-frame", nil
	}
	if img, imgErr := codec.DecodeImage(payload); imgErr == nil {
		return img, "image", nil
	}
	return types.Frame{}, "", err
}

// describeCBOR prints the top-level keys of a CBOR map that is not a frame.
func describeCBOR(payload []byte) {
	var decoded map[any]any
	if err := cbor.Unmarshal(payload, &decoded); err != nil {
		return
	}
	for key, value := range decoded {
		fmt.Printf("  %v: %T\n", key, value)
	}
}
