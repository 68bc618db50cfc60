package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"

	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/config"
	"roi-stream-go/internal/crop"
	"roi-stream-go/internal/geometry"
	"roi-stream-go/internal/types"
)

func main() {
	var (
		roiPath = flag.String("roi", "rcrop_parameters.json", "ROI parameters file")
		width   = flag.Int("width", 640, "Frame width in pixels (ignored with -image)")
		height  = flag.Int("height", 480, "Frame height in pixels (ignored with -image)")
		image   = flag.String("image", "", "Optional image to crop")
		out     = flag.String("out", "crop.png", "Where to write the crop of -image")
	)
	flag.Parse()

	roi, err := config.LoadROI(*roiPath)
	if err != nil {
		log.Fatalf("load roi: %v", err)
	}

	dims := geometry.Dimensions{Rows: *height, Cols: *width}
	var frame types.Frame
	if *image != "" {
		img, err := imaging.Open(*image, imaging.AutoOrientation(true))
		if err != nil {
			log.Fatalf("open image: %v", err)
		}
		frame = codec.FromImage(img)
		dims = geometry.Dimensions{Rows: frame.Rows, Cols: frame.Cols}
	}

	res, err := geometry.Resolve(roi, dims)
	if err != nil {
		log.Fatalf("resolve: %v", err)
	}
	rect := geometry.OrientedRect(roi, dims)

	fmt.Printf("frame: %dx%d\n", dims.Cols, dims.Rows)
	fmt.Printf("rect: center=(%.2f, %.2f) size=%.2fx%.2f angle=%.2f\n",
		rect.CenterX, rect.CenterY, rect.Width, rect.Height, rect.Angle)
	for i, p := range res.Corners {
		fmt.Printf("  corner %d: %v%s\n", i, p, roleNames(res.Roles, i))
	}
	fmt.Printf("tilt: %s\n", res.Tilt)
	fmt.Printf("border: left=%v top=%v right=%v bottom=%v\n",
		res.Border.Left, res.Border.Top, res.Border.Right, res.Border.Bottom)

	cropper, err := crop.New(roi.Width, roi.Height, res)
	if err != nil {
		log.Fatalf("build perspective transform: %v", err)
	}
	w, h := cropper.Size()
	fmt.Printf("crop: %dx%d\n", w, h)
	fmt.Printf("transform:\n  %v\n", mat.Formatted(cropper.Transform(), mat.Prefix("  "), mat.Squeeze()))

	if *image == "" {
		return
	}
	rectified, err := cropper.Crop(frame)
	if err != nil {
		log.Fatalf("crop: %v", err)
	}
	img, err := codec.ToImage(rectified)
	if err != nil {
		log.Fatalf("crop: %v", err)
	}
	if err := imaging.Save(img, *out); err != nil {
		log.Fatalf("save crop: %v", err)
	}
	fmt.Printf("wrote %s\n", *out)
}

func roleNames(r geometry.Roles, i int) string {
	names := ""
	for _, role := range []struct {
		name  string
		index int
	}{{"left", r.Left}, {"top", r.Top}, {"right", r.Right}, {"bottom", r.Bottom}} {
		if role.index == i {
			names += " " + role.name
		}
	}
	return names
}
