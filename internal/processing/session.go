package processing

import (
	"fmt"
	"log"

	"roi-stream-go/internal/config"
	"roi-stream-go/internal/crop"
	"roi-stream-go/internal/geometry"
	"roi-stream-go/internal/types"
)

// State is either Uninitialized or Ready.
type State interface {
	state()
}

// Uninitialized is the state before the first frame of a session.
type Uninitialized struct{}

// Ready holds the geometry resolved from the first frame. It is never
// modified afterwards.
type Ready struct {
	Resolution geometry.Resolution
	Cropper    *crop.Cropper
}

func (Uninitialized) state() {}
func (Ready) state()         {}

// Session crops every frame of one connection with geometry resolved once,
// from the first frame.
type Session struct {
	roi            config.ROIConfig
	current        State
	mismatchLogged bool
}

func NewSession(roi config.ROIConfig) *Session {
	return &Session{roi: roi, current: Uninitialized{}}
}

func (s *Session) State() State {
	return s.current
}

// Process crops frame, resolving the ROI first if the session is not ready.
func (s *Session) Process(frame types.Frame) (types.Frame, error) {
	ready, err := s.ready(frame)
	if err != nil {
		return types.Frame{}, err
	}
	dims := ready.Resolution.Dims
	if (frame.Rows != dims.Rows || frame.Cols != dims.Cols) && !s.mismatchLogged {
		s.mismatchLogged = true
		log.Printf("frame %d is %dx%d, session geometry was resolved for %dx%d",
			frame.FrameID, frame.Cols, frame.Rows, dims.Cols, dims.Rows)
	}
	return ready.Cropper.Crop(frame)
}

func (s *Session) ready(frame types.Frame) (Ready, error) {
	switch st := s.current.(type) {
	case Ready:
		return st, nil
	case Uninitialized:
		ready, err := Initialize(s.roi, frame)
		if err != nil {
			return Ready{}, err
		}
		s.current = ready
		return ready, nil
	default:
		return Ready{}, fmt.Errorf("unknown session state %T", st)
	}
}

// Initialize resolves the ROI against the dimensions of frame.
func Initialize(roi config.ROIConfig, frame types.Frame) (Ready, error) {
	dims := geometry.Dimensions{Rows: frame.Rows, Cols: frame.Cols}
	res, err := geometry.Resolve(roi, dims)
	if err != nil {
		return Ready{}, fmt.Errorf("resolve roi: %w", err)
	}
	cropper, err := crop.New(roi.Width, roi.Height, res)
	if err != nil {
		return Ready{}, fmt.Errorf("build perspective transform: %w", err)
	}
	log.Printf("session geometry for %dx%d: tilt=%s left=%v top=%v right=%v bottom=%v",
		dims.Cols, dims.Rows, res.Tilt, res.Border.Left, res.Border.Top, res.Border.Right, res.Border.Bottom)
	return Ready{Resolution: res, Cropper: cropper}, nil
}
