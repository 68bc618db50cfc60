package geometry

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"roi-stream-go/internal/config"
)

type Dimensions struct {
	Rows int
	Cols int
}

func (d Dimensions) Valid() bool {
	return d.Rows > 0 && d.Cols > 0
}

type Tilt int

const (
	TiltRight Tilt = iota
	TiltLeft
)

func (t Tilt) String() string {
	if t == TiltLeft {
		return "left"
	}
	return "right"
}

// CornerSet holds the rectangle corners in enumeration order.
type CornerSet [4]image.Point

// Roles are indices into a CornerSet.
type Roles struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

type BorderPoints struct {
	Left   image.Point
	Top    image.Point
	Right  image.Point
	Bottom image.Point
}

// Resolution is everything a session needs to crop frames of Dims.
type Resolution struct {
	Dims    Dimensions
	Corners CornerSet
	Roles   Roles
	Tilt    Tilt
	Border  BorderPoints
}

// RotatedRect is the single-precision rotated rectangle handed to OpenCV.
// Angle is in degrees.
type RotatedRect struct {
	CenterX float32
	CenterY float32
	Width   float32
	Height  float32
	Angle   float32
}

// OrientedRect maps a normalized ROI onto a frame. The angle is 360-alpha.
func OrientedRect(cfg config.ROIConfig, dims Dimensions) RotatedRect {
	cols := float64(dims.Cols)
	rows := float64(dims.Rows)
	return RotatedRect{
		CenterX: float32(cfg.OX * cols),
		CenterY: float32(cfg.OY * rows),
		Width:   float32(cfg.Width * cols),
		Height:  float32(cfg.Height * rows),
		Angle:   float32(360 - cfg.Alpha),
	}
}

// BoxPoints runs OpenCV's boxPoints on r and truncates the corners toward
// zero.
func BoxPoints(r RotatedRect) CornerSet {
	pts := gocv.NewMat()
	defer pts.Close()
	gocv.BoxPoints2f(gocv.RotatedRect2f{
		Center: gocv.Point2f{X: r.CenterX, Y: r.CenterY},
		Width:  r.Width,
		Height: r.Height,
		Angle:  float64(r.Angle),
	}, &pts)

	var corners CornerSet
	for i := range corners {
		corners[i] = image.Pt(int(pts.GetFloatAt(i, 0)), int(pts.GetFloatAt(i, 1)))
	}
	return corners
}

// AssignRoles labels corners by coordinate extremes. See the package
// documentation for the tie rule.
func AssignRoles(c CornerSet) Roles {
	minX, minY, maxX, maxY := c[0].X, c[0].Y, c[0].X, c[0].Y
	first := Roles{}
	for i := 1; i < 4; i++ {
		if c[i].X < minX {
			minX, first.Left = c[i].X, i
		}
		if c[i].Y < minY {
			minY, first.Top = c[i].Y, i
		}
		if c[i].X > maxX {
			maxX, first.Right = c[i].X, i
		}
		if c[i].Y > maxY {
			maxY, first.Bottom = c[i].Y, i
		}
	}

	for l := 0; l < 4; l++ {
		t, r, b := (l+1)%4, (l+2)%4, (l+3)%4
		if c[l].X == minX && c[t].Y == minY && c[r].X == maxX && c[b].Y == maxY {
			return Roles{Left: l, Top: t, Right: r, Bottom: b}
		}
	}
	return first
}

// TiltFromIndex maps the enumeration index of the left corner to a tilt:
// 1 and 3 are Left, 0 and 2 are Right.
func TiltFromIndex(left int) Tilt {
	switch left {
	case 1, 3:
		return TiltLeft
	case 0, 2:
		return TiltRight
	default:
		panic(fmt.Sprintf("geometry: corner index %d out of range", left))
	}
}

// Correct clamps corners outside the frame and shifts the tilt-adjacent
// neighbour by the overflow. Shifted coordinates are truncated like the
// corners themselves.
//
// Each product is converted to float64 explicitly so it is rounded before
// the add; without the conversion Go may fuse the two into one FMA.
func Correct(c CornerSet, roles Roles, tilt Tilt, dims Dimensions) BorderPoints {
	box := c
	rows := float64(dims.Rows)
	cols := float64(dims.Cols)

	if box[roles.Top].Y < 0 {
		overflow := math.Abs(float64(box[roles.Top].Y) / rows)
		box[roles.Top].Y = 0
		adj := roles.Left
		if tilt == TiltLeft {
			adj = roles.Right
		}
		shift := float64(overflow * rows)
		box[adj].Y = int(float64(box[adj].Y) + shift)
	}

	if box[roles.Bottom].Y > dims.Rows {
		overflow := float64(box[roles.Bottom].Y)/rows - 1
		box[roles.Bottom].Y = dims.Rows
		adj := roles.Left
		if tilt == TiltLeft {
			adj = roles.Right
		}
		shift := float64(math.Abs(overflow) * rows)
		box[adj].Y = int(float64(box[adj].Y) - shift)
	}

	if box[roles.Left].X < 0 {
		overflow := math.Abs(float64(box[roles.Left].X) / cols)
		box[roles.Left].X = 0
		adj := roles.Bottom
		if tilt == TiltLeft {
			adj = roles.Top
		}
		shift := float64(overflow * cols)
		box[adj].X = int(float64(box[adj].X) + shift)
	}

	if box[roles.Right].X > dims.Cols {
		overflow := float64(box[roles.Right].X)/cols - 1
		box[roles.Right].X = dims.Cols
		adj := roles.Bottom
		if tilt == TiltLeft {
			adj = roles.Top
		}
		shift := float64(math.Abs(overflow) * cols)
		box[adj].X = int(float64(box[adj].X) - shift)
	}

	return BorderPoints{
		Left:   box[roles.Left],
		Top:    box[roles.Top],
		Right:  box[roles.Right],
		Bottom: box[roles.Bottom],
	}
}

// Resolve runs the full geometry for the first frame of a session.
func Resolve(cfg config.ROIConfig, dims Dimensions) (Resolution, error) {
	if !dims.Valid() {
		return Resolution{}, fmt.Errorf("invalid frame dimensions %dx%d", dims.Cols, dims.Rows)
	}
	if err := cfg.Validate(); err != nil {
		return Resolution{}, err
	}

	rect := OrientedRect(cfg, dims)
	if rect.Width < 1 || rect.Height < 1 {
		return Resolution{}, fmt.Errorf("%w: roi is %.2fx%.2f px on a %dx%d frame",
			config.ErrGeometryConfig, rect.Width, rect.Height, dims.Cols, dims.Rows)
	}

	corners := BoxPoints(rect)
	if outside(corners, dims) {
		return Resolution{}, fmt.Errorf("%w: roi %v lies outside the %dx%d frame",
			config.ErrGeometryConfig, corners, dims.Cols, dims.Rows)
	}

	roles := AssignRoles(corners)
	tilt := TiltFromIndex(roles.Left)
	return Resolution{
		Dims:    dims,
		Corners: corners,
		Roles:   roles,
		Tilt:    tilt,
		Border:  Correct(corners, roles, tilt, dims),
	}, nil
}

func outside(c CornerSet, dims Dimensions) bool {
	minX, minY, maxX, maxY := c[0].X, c[0].Y, c[0].X, c[0].Y
	for _, p := range c[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return maxX <= 0 || maxY <= 0 || minX >= dims.Cols || minY >= dims.Rows
}
