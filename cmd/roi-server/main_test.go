package main

import (
	"context"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func firstFrameSize(t *testing.T, kind, path string, width, height int) (int, int) {
	t.Helper()
	src, err := openSource(kind, path, width, height, 0)
	if err != nil {
		t.Fatalf("open %s source: %v", kind, err)
	}
	defer src.Close()
	frame, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("next frame: %v", err)
	}
	return frame.Cols, frame.Rows
}

func TestImageSourceKeepsSizeByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	if err := imaging.Save(imaging.New(9, 5, color.NRGBA{R: 200, A: 255}), path); err != nil {
		t.Fatalf("save image: %v", err)
	}

	if w, h := firstFrameSize(t, "image", path, 0, 0); w != 9 || h != 5 {
		t.Fatalf("image source resized to %dx%d without -width/-height", w, h)
	}
	if w, h := firstFrameSize(t, "image", path, 18, 0); w != 18 || h != 10 {
		t.Fatalf("image source resized to %dx%d, want 18x10", w, h)
	}
}

func TestSyntheticSourceDefaultSize(t *testing.T) {
	if w, h := firstFrameSize(t, "synthetic", "", 0, 0); w != syntheticWidth || h != syntheticHeight {
		t.Fatalf("synthetic source is %dx%d", w, h)
	}
	if w, h := firstFrameSize(t, "synthetic", "", 32, 0); w != 32 || h != syntheticHeight {
		t.Fatalf("synthetic source is %dx%d", w, h)
	}
}
