package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ErrGeometryConfig marks ROI parameters that cannot produce a usable crop.
var ErrGeometryConfig = errors.New("invalid roi geometry")

// ROIConfig is the crop description read from rcrop_parameters.json.
// Center and size are normalized to the frame; Alpha is in degrees.
type ROIConfig struct {
	Alpha  float64 `json:"alpha"`
	OX     float64 `json:"ox"`
	OY     float64 `json:"oy"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func LoadROI(path string) (ROIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ROIConfig{}, err
	}
	var cfg ROIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ROIConfig{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return ROIConfig{}, err
	}
	return cfg, nil
}

func (c ROIConfig) Validate() error {
	for name, v := range map[string]float64{
		"alpha": c.Alpha, "ox": c.OX, "oy": c.OY, "width": c.Width, "height": c.Height,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrGeometryConfig, name)
		}
	}
	if c.OX < 0 || c.OX > 1 || c.OY < 0 || c.OY > 1 {
		return fmt.Errorf("%w: center (%g, %g) outside [0,1]", ErrGeometryConfig, c.OX, c.OY)
	}
	if c.Width <= 0 || c.Width > 1 || c.Height <= 0 || c.Height > 1 {
		return fmt.Errorf("%w: size %gx%g outside (0,1]", ErrGeometryConfig, c.Width, c.Height)
	}
	return nil
}
