package server

import (
	"encoding/base64"

	"github.com/disintegration/imaging"

	"roi-stream-go/internal/codec"
	"roi-stream-go/internal/types"
)

// CropMessage encodes crop as a JPEG for the browser, scaled down to fit
// maxWidth when maxWidth is positive.
func CropMessage(crop types.Frame, maxWidth int) (types.CropMessage, error) {
	img, err := codec.ToImage(crop)
	if err != nil {
		return types.CropMessage{}, err
	}
	if maxWidth > 0 && crop.Cols > maxWidth {
		scaled := codec.FromImage(imaging.Resize(img, maxWidth, 0, imaging.Linear))
		scaled.FrameID, scaled.Timestamp = crop.FrameID, crop.Timestamp
		crop = scaled
	}
	data, err := codec.EncodeImage(crop, imaging.JPEG)
	if err != nil {
		return types.CropMessage{}, err
	}
	return types.CropMessage{
		Type:      "crop",
		FrameID:   crop.FrameID,
		Timestamp: crop.Timestamp,
		Width:     crop.Cols,
		Height:    crop.Rows,
		MimeType:  codec.MimeType(imaging.JPEG),
		Image:     base64.StdEncoding.EncodeToString(data),
	}, nil
}
