package geometry

import (
	"errors"
	"image"
	"math"
	"testing"

	"roi-stream-go/internal/config"
)

var vga = Dimensions{Rows: 480, Cols: 640}

func roi(alpha, ox, oy, width, height float64) config.ROIConfig {
	return config.ROIConfig{Alpha: alpha, OX: ox, OY: oy, Width: width, Height: height}
}

func rawBorder(c CornerSet, r Roles) BorderPoints {
	return BorderPoints{Left: c[r.Left], Top: c[r.Top], Right: c[r.Right], Bottom: c[r.Bottom]}
}

func TestBoxPointsAxisAligned(t *testing.T) {
	got := BoxPoints(OrientedRect(roi(0, 0.5, 0.5, 0.3, 0.2), vga))
	want := CornerSet{
		image.Pt(224, 288),
		image.Pt(224, 192),
		image.Pt(416, 192),
		image.Pt(416, 288),
	}
	if got != want {
		t.Fatalf("BoxPoints mismatch: got %v want %v", got, want)
	}
}

func TestBoxPointsRotated(t *testing.T) {
	got := BoxPoints(OrientedRect(roi(30, 0.5, 0.5, 0.3, 0.2), vga))
	want := CornerSet{
		image.Pt(260, 329),
		image.Pt(212, 246),
		image.Pt(379, 150),
		image.Pt(427, 233),
	}
	if got != want {
		t.Fatalf("BoxPoints mismatch: got %v want %v", got, want)
	}
}

func TestResolveCenteredRectangle(t *testing.T) {
	res, err := Resolve(roi(0, 0.5, 0.5, 0.3, 0.2), vga)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if res.Tilt != TiltRight {
		t.Fatalf("unexpected tilt %v", res.Tilt)
	}
	want := BorderPoints{
		Left:   image.Pt(224, 288),
		Top:    image.Pt(224, 192),
		Right:  image.Pt(416, 192),
		Bottom: image.Pt(416, 288),
	}
	if res.Border != want {
		t.Fatalf("unexpected border points: got %+v want %+v", res.Border, want)
	}
	if res.Border != rawBorder(res.Corners, res.Roles) {
		t.Fatalf("correction triggered for an inside rectangle")
	}
}

func TestTiltFromIndex(t *testing.T) {
	want := map[int]Tilt{0: TiltRight, 1: TiltLeft, 2: TiltRight, 3: TiltLeft}
	for idx, tilt := range want {
		if got := TiltFromIndex(idx); got != tilt {
			t.Errorf("TiltFromIndex(%d) = %v, want %v", idx, got, tilt)
		}
	}
}

func TestTiltFromIndexPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	TiltFromIndex(4)
}

func TestAssignRolesTieBreak(t *testing.T) {
	// axis-aligned: two corners share every extreme
	c := CornerSet{image.Pt(224, 288), image.Pt(224, 192), image.Pt(416, 192), image.Pt(416, 288)}
	got := AssignRoles(c)
	want := Roles{Left: 0, Top: 1, Right: 2, Bottom: 3}
	if got != want {
		t.Fatalf("AssignRoles = %+v, want %+v", got, want)
	}

	// rotated by 90 degrees: index 0 is no longer a minimum-x corner
	c = CornerSet{image.Pt(368, 336), image.Pt(272, 336), image.Pt(272, 144), image.Pt(368, 144)}
	got = AssignRoles(c)
	want = Roles{Left: 1, Top: 2, Right: 3, Bottom: 0}
	if got != want {
		t.Fatalf("AssignRoles = %+v, want %+v", got, want)
	}
}

func TestAssignRolesFallsBackToFirstIndex(t *testing.T) {
	// not a rectangle: no cyclic assignment exists
	c := CornerSet{image.Pt(0, 0), image.Pt(10, 10), image.Pt(0, 10), image.Pt(10, 0)}
	got := AssignRoles(c)
	want := Roles{Left: 0, Top: 0, Right: 1, Bottom: 1}
	if got != want {
		t.Fatalf("AssignRoles = %+v, want %+v", got, want)
	}
}

func TestRolesAreDistinctAcrossRotations(t *testing.T) {
	for step := 0; step < 1440; step++ {
		alpha := float64(step) / 4
		res, err := Resolve(roi(alpha, 0.5, 0.5, 0.3, 0.2), vga)
		if err != nil {
			t.Fatalf("alpha %.2f: %v", alpha, err)
		}
		r := res.Roles
		if r.Top != (r.Left+1)%4 || r.Right != (r.Left+2)%4 || r.Bottom != (r.Left+3)%4 {
			t.Fatalf("alpha %.2f: roles %+v do not follow the corner cycle", alpha, r)
		}
	}
}

// The tilt decides which destination corners the border points map to: for
// Left the left→top edge becomes the top of the crop, for Right it becomes
// the left side. Either way the crop's width must run along the ROI width.
func TestTiltTracksWidthEdgeAcrossRotations(t *testing.T) {
	shapes := []config.ROIConfig{
		roi(0, 0.5, 0.5, 0.3, 0.2),
		roi(0, 0.5, 0.5, 0.2, 0.3),
		roi(0, 0.4, 0.6, 0.25, 0.25),
		roi(0, 0.5, 0.5, 0.1, 0.4),
	}
	for _, shape := range shapes {
		width := shape.Width * float64(vga.Cols)
		height := shape.Height * float64(vga.Rows)
		for step := 0; step < 1440; step++ {
			cfg := shape
			cfg.Alpha = float64(step) / 4
			res, err := Resolve(cfg, vga)
			if err != nil {
				t.Fatalf("%+v: %v", cfg, err)
			}
			if res.Tilt != TiltFromIndex(res.Roles.Left) {
				t.Fatalf("%+v: tilt %v does not match left index %d", cfg, res.Tilt, res.Roles.Left)
			}
			edge := dist(res.Corners[res.Roles.Left], res.Corners[res.Roles.Top])
			want := height
			if res.Tilt == TiltLeft {
				want = width
			}
			if math.Abs(edge-want) > 2.5 {
				t.Fatalf("%+v: left-top edge %.2f, want %.2f for tilt %v", cfg, edge, want, res.Tilt)
			}
		}
	}
}

func TestInsideRectanglesAreNotCorrected(t *testing.T) {
	for step := 0; step < 360; step++ {
		cfg := roi(float64(step), 0.5, 0.5, 0.3, 0.2)
		res, err := Resolve(cfg, vga)
		if err != nil {
			t.Fatalf("%+v: %v", cfg, err)
		}
		if res.Border != rawBorder(res.Corners, res.Roles) {
			t.Fatalf("%+v: border %+v differs from raw corners %v", cfg, res.Border, res.Corners)
		}
	}
}

func TestTopOverflow(t *testing.T) {
	// oy*480 - height*480/2 = 24 - 48 < 0
	res, err := Resolve(roi(0, 0.5, 0.05, 0.3, 0.2), vga)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if res.Tilt != TiltRight {
		t.Fatalf("unexpected tilt %v", res.Tilt)
	}
	want := BorderPoints{
		Left:   image.Pt(224, 96), // 72 shifted down by 24
		Top:    image.Pt(224, 0),
		Right:  image.Pt(416, -24),
		Bottom: image.Pt(416, 72),
	}
	if res.Border != want {
		t.Fatalf("unexpected border points: got %+v want %+v", res.Border, want)
	}
}

func TestSingleEdgeCorrections(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.ROIConfig
		tilt Tilt
		want BorderPoints
	}{
		{
			name: "top, left tilt shifts right corner down",
			cfg:  roi(10, 0.5, 0.08, 0.3, 0.2),
			tilt: TiltLeft,
			want: BorderPoints{Left: image.Pt(217, 7), Top: image.Pt(406, 0), Right: image.Pt(422, 94), Bottom: image.Pt(233, 102)},
		},
		{
			name: "top, right tilt shifts left corner down",
			cfg:  roi(350, 0.5, 0.08, 0.3, 0.2),
			tilt: TiltRight,
			want: BorderPoints{Left: image.Pt(217, 94), Top: image.Pt(233, 0), Right: image.Pt(422, 7), Bottom: image.Pt(406, 102)},
		},
		{
			name: "bottom, left tilt shifts right corner up",
			cfg:  roi(10, 0.5, 0.92, 0.3, 0.2),
			tilt: TiltLeft,
			want: BorderPoints{Left: image.Pt(217, 410), Top: image.Pt(406, 377), Right: image.Pt(422, 447), Bottom: image.Pt(233, 480)},
		},
		{
			name: "bottom, right tilt shifts left corner up",
			cfg:  roi(0, 0.5, 0.95, 0.3, 0.2),
			tilt: TiltRight,
			want: BorderPoints{Left: image.Pt(224, 480), Top: image.Pt(224, 408), Right: image.Pt(416, 408), Bottom: image.Pt(416, 480)},
		},
		{
			name: "left, left tilt shifts top corner right",
			cfg:  roi(10, 0.08, 0.5, 0.3, 0.2),
			tilt: TiltLeft,
			want: BorderPoints{Left: image.Pt(0, 209), Top: image.Pt(188, 176), Right: image.Pt(154, 270), Bottom: image.Pt(-35, 303)},
		},
		{
			name: "left, right tilt shifts bottom corner right",
			cfg:  roi(0, 0.05, 0.5, 0.3, 0.2),
			tilt: TiltRight,
			want: BorderPoints{Left: image.Pt(0, 288), Top: image.Pt(-64, 192), Right: image.Pt(128, 192), Bottom: image.Pt(192, 288)},
		},
		{
			name: "right, left tilt shifts top corner left",
			cfg:  roi(10, 0.92, 0.5, 0.3, 0.2),
			tilt: TiltLeft,
			want: BorderPoints{Left: image.Pt(485, 209), Top: image.Pt(624, 176), Right: image.Pt(640, 270), Bottom: image.Pt(502, 303)},
		},
		{
			name: "right, right tilt shifts bottom corner left",
			cfg:  roi(0, 0.95, 0.5, 0.3, 0.2),
			tilt: TiltRight,
			want: BorderPoints{Left: image.Pt(512, 288), Top: image.Pt(512, 192), Right: image.Pt(640, 192), Bottom: image.Pt(640, 288)},
		},
	}

	for _, tc := range cases {
		res, err := Resolve(tc.cfg, vga)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if res.Tilt != tc.tilt {
			t.Fatalf("%s: tilt %v, want %v", tc.name, res.Tilt, tc.tilt)
		}
		if res.Border != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.name, res.Border, tc.want)
		}
		raw := rawBorder(res.Corners, res.Roles)
		if moved := changed(raw, res.Border); moved != 2 {
			t.Fatalf("%s: %d corners moved, want the clamped corner and one neighbour", tc.name, moved)
		}
	}
}

func TestCorrectShiftIsProportional(t *testing.T) {
	dims := Dimensions{Rows: 512, Cols: 512}
	c := CornerSet{image.Pt(100, 200), image.Pt(120, -64), image.Pt(300, -40), image.Pt(280, 220)}
	roles := Roles{Left: 0, Top: 1, Right: 2, Bottom: 3}

	got := Correct(c, roles, TiltLeft, dims)
	if got.Top != image.Pt(120, 0) {
		t.Fatalf("top not clamped: %v", got.Top)
	}
	// overflow 64/512 = 0.125 of the frame height
	if got.Right != image.Pt(300, 24) {
		t.Fatalf("right not shifted by the overflow: %v", got.Right)
	}
	if got.Left != c[0] || got.Bottom != c[3] {
		t.Fatalf("unexpected corners moved: %+v", got)
	}

	got = Correct(c, roles, TiltRight, dims)
	if got.Left != image.Pt(100, 264) || got.Right != c[2] {
		t.Fatalf("right tilt should shift the left corner: %+v", got)
	}
}

func TestCorrectTwoEdgesIndependently(t *testing.T) {
	res, err := Resolve(roi(20, 0.05, 0.05, 0.3, 0.2), vga)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := BorderPoints{
		Left:   image.Pt(0, 11),
		Top:    image.Pt(179, 0),
		Right:  image.Pt(138, 89),
		Bottom: image.Pt(-41, 101),
	}
	if res.Border != want {
		t.Fatalf("got %+v want %+v", res.Border, want)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	if _, err := Resolve(roi(0, 0.5, 0.5, 0.3, 0.2), Dimensions{}); err == nil {
		t.Fatalf("expected error for empty frame")
	}
	if _, err := Resolve(roi(0, 0.5, 0.5, 0.001, 0.2), Dimensions{Rows: 480, Cols: 640}); !errors.Is(err, config.ErrGeometryConfig) {
		t.Fatalf("expected ErrGeometryConfig for sub-pixel width, got %v", err)
	}
	if _, err := Resolve(roi(0, 0.5, 0.5, 2, 0.2), vga); !errors.Is(err, config.ErrGeometryConfig) {
		t.Fatalf("expected ErrGeometryConfig for oversize width, got %v", err)
	}
}

func TestOutside(t *testing.T) {
	inside := CornerSet{image.Pt(-10, -10), image.Pt(5, -10), image.Pt(5, 5), image.Pt(-10, 5)}
	if outside(inside, vga) {
		t.Fatalf("rectangle overlapping the corner reported outside")
	}
	gone := CornerSet{image.Pt(650, 10), image.Pt(700, 10), image.Pt(700, 50), image.Pt(650, 50)}
	if !outside(gone, vga) {
		t.Fatalf("rectangle right of the frame reported inside")
	}
}

func dist(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

func changed(a, b BorderPoints) int {
	n := 0
	for i, p := range []image.Point{a.Left, a.Top, a.Right, a.Bottom} {
		if p != []image.Point{b.Left, b.Top, b.Right, b.Bottom}[i] {
			n++
		}
	}
	return n
}
