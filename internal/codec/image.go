package codec

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"roi-stream-go/internal/types"
)

const defaultJPEGQuality = 90

// ParseFormat maps a flag value to an image format.
func ParseFormat(name string) (imaging.Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jpeg", "jpg":
		return imaging.JPEG, nil
	case "png":
		return imaging.PNG, nil
	default:
		return 0, fmt.Errorf("unsupported image encoding %q", name)
	}
}

func MimeType(format imaging.Format) string {
	if format == imaging.PNG {
		return "image/png"
	}
	return "image/jpeg"
}

// EncodeImage encodes a frame as a standalone image, one per pub/sub message.
func EncodeImage(frame types.Frame, format imaging.Format) ([]byte, error) {
	img, err := ToImage(frame)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(defaultJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", MimeType(format), err)
	}
	return buf.Bytes(), nil
}

// DecodeImage turns an encoded image into a 3-channel RGB frame.
func DecodeImage(data []byte) (types.Frame, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return types.Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return FromImage(img), nil
}

// ToImage wraps frame pixels in an image. 1-channel frames become gray
// images; 3 and 4 channel frames become NRGBA.
func ToImage(frame types.Frame) (image.Image, error) {
	if !frame.Valid() {
		return nil, fmt.Errorf("%w: %dx%dx%d with %d bytes", ErrInvalidFrame, frame.Rows, frame.Cols, frame.Channels, len(frame.Pix))
	}
	rect := image.Rect(0, 0, frame.Cols, frame.Rows)
	switch frame.Channels {
	case 1:
		return &image.Gray{Pix: frame.Pix, Stride: frame.Cols, Rect: rect}, nil
	case 4:
		return &image.NRGBA{Pix: frame.Pix, Stride: frame.Cols * 4, Rect: rect}, nil
	case 3:
		img := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(frame.Pix); i, j = i+3, j+4 {
			img.Pix[j] = frame.Pix[i]
			img.Pix[j+1] = frame.Pix[i+1]
			img.Pix[j+2] = frame.Pix[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidFrame, frame.Channels)
	}
}

func FromImage(img image.Image) types.Frame {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	frame := types.Frame{
		Rows:     bounds.Dy(),
		Cols:     bounds.Dx(),
		Channels: 3,
		Pix:      make([]byte, bounds.Dx()*bounds.Dy()*3),
	}
	for i, j := 0, 0; j < len(frame.Pix); i, j = i+4, j+3 {
		frame.Pix[j] = nrgba.Pix[i]
		frame.Pix[j+1] = nrgba.Pix[i+1]
		frame.Pix[j+2] = nrgba.Pix[i+2]
	}
	return frame
}
