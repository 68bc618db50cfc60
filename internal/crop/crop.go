// Package crop rectifies the tilted ROI quadrilateral into an upright image.
package crop

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"roi-stream-go/internal/config"
	"roi-stream-go/internal/geometry"
	"roi-stream-go/internal/types"
)

// Point is a sub-pixel image coordinate.
type Point struct {
	X, Y float64
}

// Cropper warps frames through a transform fixed at construction.
type Cropper struct {
	width  int
	height int
	// source pixel -> output pixel
	m *mat.Dense
}

// SourcePoints orders the border points as the transform expects:
// bottom, left, top, right.
func SourcePoints(b geometry.BorderPoints) [4]Point {
	return [4]Point{
		{float64(b.Bottom.X), float64(b.Bottom.Y)},
		{float64(b.Left.X), float64(b.Left.Y)},
		{float64(b.Top.X), float64(b.Top.Y)},
		{float64(b.Right.X), float64(b.Right.Y)},
	}
}

// DestinationPoints returns the output rectangle corners matching
// SourcePoints. For a left tilt they are bottom-left, top-left, top-right,
// bottom-right; for a right tilt the same rectangle starts at bottom-right.
func DestinationPoints(w, h float64, tilt geometry.Tilt) [4]Point {
	if tilt == geometry.TiltLeft {
		return [4]Point{{0, h}, {0, 0}, {w, 0}, {w, h}}
	}
	return [4]Point{{w, h}, {0, h}, {0, 0}, {w, 0}}
}

// PerspectiveTransform returns the 3x3 homography taking each src point to
// the matching dst point. A degenerate quadrilateral has no such transform.
func PerspectiveTransform(src, dst [4]Point) (*mat.Dense, error) {
	srcVec := gocv.NewPoint2fVectorFromPoints(toPoint2f(src))
	defer srcVec.Close()
	dstVec := gocv.NewPoint2fVectorFromPoints(toPoint2f(dst))
	defer dstVec.Close()

	m := gocv.GetPerspectiveTransform2f(srcVec, dstVec)
	defer m.Close()
	if m.Empty() || m.Rows() != 3 || m.Cols() != 3 {
		return nil, fmt.Errorf("%w: no perspective transform for %v", config.ErrGeometryConfig, src)
	}
	h := togonum(&m)
	if det := mat.Det(h); det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return nil, fmt.Errorf("%w: singular perspective transform for %v", config.ErrGeometryConfig, src)
	}
	return h, nil
}

// New builds a cropper for a resolved session. width and height are the
// normalized ROI size; the output is int(width*cols) by int(height*rows).
func New(width, height float64, res geometry.Resolution) (*Cropper, error) {
	cols := float64(res.Dims.Cols)
	rows := float64(res.Dims.Rows)
	outW := int(width * cols)
	outH := int(height * rows)
	if outW < 1 || outH < 1 {
		return nil, fmt.Errorf("%w: crop size %dx%d", config.ErrGeometryConfig, outW, outH)
	}

	m, err := PerspectiveTransform(SourcePoints(res.Border), DestinationPoints(width*cols, height*rows, res.Tilt))
	if err != nil {
		return nil, err
	}
	return &Cropper{width: outW, height: outH, m: m}, nil
}

func (c *Cropper) Size() (width, height int) {
	return c.width, c.height
}

// Transform returns a copy of the source to output homography.
func (c *Cropper) Transform() *mat.Dense {
	return mat.DenseCopyOf(c.m)
}

// Crop warps frame through the transform with bilinear interpolation.
// Output pixels whose source falls outside the frame are zero.
func (c *Cropper) Crop(frame types.Frame) (types.Frame, error) {
	if !frame.Valid() {
		return types.Frame{}, fmt.Errorf("invalid frame %dx%dx%d with %d bytes", frame.Cols, frame.Rows, frame.Channels, len(frame.Pix))
	}
	mt, ok := matTypes[frame.Channels]
	if !ok {
		return types.Frame{}, fmt.Errorf("unsupported channel count %d", frame.Channels)
	}
	src, err := gocv.NewMatFromBytes(frame.Rows, frame.Cols, mt, frame.Pix)
	if err != nil {
		return types.Frame{}, fmt.Errorf("wrap frame: %w", err)
	}
	defer src.Close()
	m := togocv(c.m)
	defer m.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspectiveWithParams(src, &warped, m, image.Pt(c.width, c.height),
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})

	return types.Frame{
		FrameID:   frame.FrameID,
		Timestamp: frame.Timestamp,
		Rows:      c.height,
		Cols:      c.width,
		Channels:  frame.Channels,
		Pix:       warped.ToBytes(),
	}, nil
}

var matTypes = map[int]gocv.MatType{
	1: gocv.MatTypeCV8UC1,
	3: gocv.MatTypeCV8UC3,
	4: gocv.MatTypeCV8UC4,
}

// toPoint2f narrows to the single-precision points OpenCV solves with.
func toPoint2f(pts [4]Point) []gocv.Point2f {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return out
}

func togonum(m *gocv.Mat) *mat.Dense {
	d := mat.NewDense(m.Rows(), m.Cols(), nil)
	for r := 0; r < m.Rows(); r++ {
		for c := 0; c < m.Cols(); c++ {
			d.Set(r, c, m.GetDoubleAt(r, c))
		}
	}
	return d
}

func togocv(input mat.Matrix) gocv.Mat {
	rows, cols := input.Dims()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.SetDoubleAt(r, c, input.At(r, c))
		}
	}
	return m
}
