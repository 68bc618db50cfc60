package types

// Frame is one raw capture: Rows*Cols pixels, Channels interleaved bytes each,
// row-major. Channel order is RGB for 3 channels and RGBA for 4.
type Frame struct {
	FrameID   int     `json:"frame_id"`
	Timestamp float64 `json:"timestamp"`
	Rows      int     `json:"rows"`
	Cols      int     `json:"cols"`
	Channels  int     `json:"channels"`
	Pix       []byte  `json:"-"`
}

// Valid reports whether Pix holds exactly Rows*Cols*Channels bytes.
func (f Frame) Valid() bool {
	return f.Rows > 0 && f.Cols > 0 && f.Channels > 0 && len(f.Pix) == f.Rows*f.Cols*f.Channels
}
