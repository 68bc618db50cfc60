package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// RFC 8746 typed-array tags.
const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint8Clamped  = 68
)

type pixelArray struct {
	rows     int
	cols     int
	channels int
	pix      []byte
}

func encodeMultiDimArray(rows, cols, channels int, pix []byte) cbor.Tag {
	return cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]int{rows, cols, channels},
			cbor.Tag{Number: tagUint8, Content: pix},
		},
	}
}

// decodeMultiDimArray accepts [rows, cols] (single channel) or
// [rows, cols, channels] shapes over a uint8 typed array.
func decodeMultiDimArray(value any) (pixelArray, error) {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != tagMultiDimArray {
		return pixelArray{}, fmt.Errorf("expected multidim tag 40")
	}

	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return pixelArray{}, fmt.Errorf("invalid multidim array content")
	}

	dimsRaw, ok := items[0].([]any)
	if !ok || len(dimsRaw) < 2 || len(dimsRaw) > 3 {
		return pixelArray{}, fmt.Errorf("invalid multidim dimensions")
	}
	dims := make([]int, len(dimsRaw))
	for i, raw := range dimsRaw {
		n, err := toInt(raw)
		if err != nil {
			return pixelArray{}, err
		}
		if n <= 0 {
			return pixelArray{}, fmt.Errorf("invalid dimension %d", n)
		}
		dims[i] = n
	}
	channels := 1
	if len(dims) == 3 {
		channels = dims[2]
	}

	flat, err := decodeTypedArray(items[1])
	if err != nil {
		return pixelArray{}, err
	}
	if dims[0]*dims[1]*channels != len(flat) {
		return pixelArray{}, errors.New("dimension mismatch")
	}

	return pixelArray{rows: dims[0], cols: dims[1], channels: channels, pix: flat}, nil
}

func decodeTypedArray(value any) ([]byte, error) {
	tag, ok := value.(cbor.Tag)
	if !ok {
		return nil, fmt.Errorf("expected typed array tag")
	}
	switch tag.Number {
	case tagUint8, tagUint8Clamped:
	default:
		return nil, fmt.Errorf("unsupported typed array tag %d", tag.Number)
	}
	data, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported typed array content %T", tag.Content)
	}
	return data, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}
