package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/types"
)

// CropWriter saves every Nth rectified crop as a PNG under one run
// directory.
type CropWriter struct {
	dir   string
	every int
	seen  int
}

// NewCropWriter returns a writer for outputDir/runTimestamp. every < 1
// disables saving.
func NewCropWriter(outputDir, runTimestamp string, every int) *CropWriter {
	return &CropWriter{dir: filepath.Join(outputDir, runTimestamp), every: every}
}

// Add counts crop and writes it when it is due. It returns the written path,
// or "" when nothing was written.
func (w *CropWriter) Add(crop types.Frame) (string, error) {
	if w.every < 1 {
		return "", nil
	}
	w.seen++
	if (w.seen-1)%w.every != 0 {
		return "", nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}
	img, err := codec.ToImage(crop)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("crop_%06d.png", crop.FrameID))
	if err := imaging.Save(img, path); err != nil {
		return "", err
	}
	return path, nil
}
