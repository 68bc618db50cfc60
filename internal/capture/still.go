package capture

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/types"
)

// Still repeats one image from disk, optionally resized, as a live source.
type Still struct {
	frame  types.Frame
	pace   *pacer
	nextID int
}

// NewStill loads path. A positive width or height resizes the image; when
// only one is set the aspect ratio is kept.
func NewStill(path string, width, height int, fps float64) (*Still, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &CaptureError{Source: path, Err: err}
	}
	if width > 0 || height > 0 {
		img = imaging.Resize(img, max(width, 0), max(height, 0), imaging.Lanczos)
	}
	frame := codec.FromImage(img)
	if !frame.Valid() {
		return nil, &CaptureError{Source: path, Err: fmt.Errorf("empty image")}
	}
	return &Still{frame: frame, pace: newPacer(fps)}, nil
}

func (s *Still) Next(ctx context.Context) (types.Frame, error) {
	if err := s.pace.wait(ctx); err != nil {
		return types.Frame{}, err
	}
	frame := s.frame
	frame.FrameID = s.nextID
	frame.Timestamp = now()
	s.nextID++
	return frame, nil
}

func (s *Still) Close() error {
	s.pace.stop()
	return nil
}
