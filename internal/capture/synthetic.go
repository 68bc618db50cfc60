package capture

import (
	"context"
	"fmt"
	"math"

	"roi-stream-go/internal/types"
)

// Synthetic renders a test scene: a radial falloff around a spot that
// circles the frame center, over a color gradient. Frame ids count from 0.
type Synthetic struct {
	rows, cols int
	pace       *pacer
	base       []byte
	nextID     int
}

func NewSynthetic(cols, rows int, fps float64) (*Synthetic, error) {
	if cols < 1 || rows < 1 {
		return nil, &CaptureError{Source: "synthetic", Err: fmt.Errorf("invalid size %dx%d", cols, rows)}
	}
	base := make([]byte, rows*cols*3)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := (y*cols + x) * 3
			base[i] = byte(x * 255 / max(cols-1, 1))
			base[i+1] = byte(y * 255 / max(rows-1, 1))
			base[i+2] = byte((x + y) % 256)
		}
	}
	return &Synthetic{rows: rows, cols: cols, pace: newPacer(fps), base: base}, nil
}

func (s *Synthetic) Next(ctx context.Context) (types.Frame, error) {
	if err := s.pace.wait(ctx); err != nil {
		return types.Frame{}, err
	}
	id := s.nextID
	s.nextID++

	phase := float64(id) * 2 * math.Pi / 120
	cx := float64(s.cols)/2 + float64(s.cols)/4*math.Cos(phase)
	cy := float64(s.rows)/2 + float64(s.rows)/4*math.Sin(phase)
	spread := float64(s.cols*s.rows) / 40

	pix := make([]byte, len(s.base))
	copy(pix, s.base)
	for y := 0; y < s.rows; y++ {
		dy := float64(y) - cy
		for x := 0; x < s.cols; x++ {
			dx := float64(x) - cx
			glow := 255 * math.Exp(-(dx*dx+dy*dy)/spread)
			i := (y*s.cols + x) * 3
			for k := 0; k < 3; k++ {
				v := float64(pix[i+k]) + glow
				if v > 255 {
					v = 255
				}
				pix[i+k] = byte(v)
			}
		}
	}
	return types.Frame{
		FrameID:   id,
		Timestamp: now(),
		Rows:      s.rows,
		Cols:      s.cols,
		Channels:  3,
		Pix:       pix,
	}, nil
}

func (s *Synthetic) Close() error {
	s.pace.stop()
	return nil
}
