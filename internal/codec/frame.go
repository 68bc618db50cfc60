// Package codec serializes frames for the wire.
//
// Stream mode carries raw pixels as a CBOR map whose "data" entry is an
// RFC 8746 multi-dimensional uint8 array:
//
//	{ "type": "frame", "frame_id": <int>, "timestamp": <float>, "data": 40([[rows, cols, channels], 64(h'...')]) }
//
// Publish/subscribe mode carries one encoded image per message instead (see
// EncodeImage).
package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"roi-stream-go/internal/types"
)

const messageTypeFrame = "frame"

var ErrInvalidFrame = errors.New("invalid frame payload")

func EncodeFrame(frame types.Frame) ([]byte, error) {
	if !frame.Valid() {
		return nil, fmt.Errorf("%w: %dx%dx%d with %d bytes", ErrInvalidFrame, frame.Rows, frame.Cols, frame.Channels, len(frame.Pix))
	}
	return cbor.Marshal(map[string]any{
		"type":      messageTypeFrame,
		"frame_id":  frame.FrameID,
		"timestamp": frame.Timestamp,
		"data":      encodeMultiDimArray(frame.Rows, frame.Cols, frame.Channels, frame.Pix),
	})
}

func DecodeFrame(payload []byte) (types.Frame, error) {
	var msg map[string]any
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return types.Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	msgType, _ := msg["type"].(string)
	if msgType != messageTypeFrame {
		return types.Frame{}, fmt.Errorf("%w: message type %q", ErrInvalidFrame, msgType)
	}

	frameID, err := toInt(msg["frame_id"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("%w: frame_id: %v", ErrInvalidFrame, err)
	}
	timestamp, err := toFloat(msg["timestamp"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidFrame, err)
	}
	arr, err := decodeMultiDimArray(msg["data"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("%w: data: %v", ErrInvalidFrame, err)
	}

	return types.Frame{
		FrameID:   frameID,
		Timestamp: timestamp,
		Rows:      arr.rows,
		Cols:      arr.cols,
		Channels:  arr.channels,
		Pix:       arr.pix,
	}, nil
}
