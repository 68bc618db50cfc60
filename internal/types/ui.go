package types

type CropMessage struct {
	Type      string  `json:"type"`
	FrameID   int     `json:"frame_id"`
	Timestamp float64 `json:"timestamp"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	MimeType  string  `json:"mime_type"`
	Image     string  `json:"image_base64"`
}
