// Package config loads runtime tuning from JSON files and stored overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/fingerfuse/internal/detector"
	"github.com/ayusman/fingerfuse/internal/fusion"
	"github.com/ayusman/fingerfuse/internal/keyboard"
	"github.com/ayusman/fingerfuse/internal/marker"
)

// TuningConfig holds optional overrides for the fusion pipeline. Nil
// fields keep their built-in defaults, so partial files are safe. The
// schema matches /api/settings so the same JSON serves startup and
// runtime updates.
type TuningConfig struct {
	// Blend weights
	MarkerWeight    *float64 `json:"marker_weight,omitempty"`
	MarkerRGBWeight *float64 `json:"marker_rgb_weight,omitempty"`
	DepthWeight     *float64 `json:"depth_weight,omitempty"`
	DepthRGBWeight  *float64 `json:"depth_rgb_weight,omitempty"`
	DepthScale      *float64 `json:"depth_scale,omitempty"` // depth units per RGB z unit
	FilterRGBOnly   *bool    `json:"filter_rgb_only,omitempty"`

	// Kalman filter
	ProcessNoise       *float64 `json:"process_noise,omitempty"`
	MeasurementNoise   *float64 `json:"measurement_noise,omitempty"`
	InitialUncertainty *float64 `json:"initial_uncertainty,omitempty"`

	// Marker segmentation (OpenCV HSV scale)
	MarkerHSVLower *[3]float64 `json:"marker_hsv_lower,omitempty"`
	MarkerHSVUpper *[3]float64 `json:"marker_hsv_upper,omitempty"`
	MarkerMinArea  *float64    `json:"marker_min_area,omitempty"`
	MarkerAnnotate *bool       `json:"marker_annotate,omitempty"`

	// Hand detector
	MaxHands         *int     `json:"max_hands,omitempty"`
	ModelComplexity  *int     `json:"model_complexity,omitempty"`
	MinDetectionConf *float64 `json:"min_detection_confidence,omitempty"`
	MinTrackingConf  *float64 `json:"min_tracking_confidence,omitempty"`

	// Keyboard
	PressDepth   *float64 `json:"press_depth,omitempty"`
	LayoutID     *string  `json:"layout_id,omitempty"`
	FuseAllHands *bool    `json:"fuse_all_hands,omitempty"`

	// Camera
	CameraFPS *int `json:"camera_fps,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates JSON tuning data.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that set values are in range.
func (c *TuningConfig) Validate() error {
	weights := map[string]*float64{
		"marker_weight":     c.MarkerWeight,
		"marker_rgb_weight": c.MarkerRGBWeight,
		"depth_weight":      c.DepthWeight,
		"depth_rgb_weight":  c.DepthRGBWeight,
	}
	for name, w := range weights {
		if w != nil && (*w < 0 || *w > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *w)
		}
	}

	if c.DepthScale != nil && *c.DepthScale <= 0 {
		return fmt.Errorf("depth_scale must be positive, got %f", *c.DepthScale)
	}
	if c.ProcessNoise != nil && *c.ProcessNoise < 0 {
		return fmt.Errorf("process_noise must be non-negative, got %f", *c.ProcessNoise)
	}
	if c.MeasurementNoise != nil && *c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement_noise must be positive, got %f", *c.MeasurementNoise)
	}
	if c.InitialUncertainty != nil && *c.InitialUncertainty <= 0 {
		return fmt.Errorf("initial_uncertainty must be positive, got %f", *c.InitialUncertainty)
	}
	if c.MarkerMinArea != nil && *c.MarkerMinArea < 0 {
		return fmt.Errorf("marker_min_area must be non-negative, got %f", *c.MarkerMinArea)
	}
	if c.MarkerHSVLower != nil && c.MarkerHSVUpper != nil {
		for i := range c.MarkerHSVLower {
			if c.MarkerHSVLower[i] > c.MarkerHSVUpper[i] {
				return fmt.Errorf("marker_hsv_lower[%d] exceeds marker_hsv_upper[%d]", i, i)
			}
		}
	}
	if c.MaxHands != nil && *c.MaxHands < 1 {
		return fmt.Errorf("max_hands must be at least 1, got %d", *c.MaxHands)
	}
	if c.ModelComplexity != nil && (*c.ModelComplexity < 0 || *c.ModelComplexity > 1) {
		return fmt.Errorf("model_complexity must be 0 or 1, got %d", *c.ModelComplexity)
	}
	for name, v := range map[string]*float64{
		"min_detection_confidence": c.MinDetectionConf,
		"min_tracking_confidence":  c.MinTrackingConf,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}
	if c.CameraFPS != nil && *c.CameraFPS < 1 {
		return fmt.Errorf("camera_fps must be positive, got %d", *c.CameraFPS)
	}
	return nil
}

// Merge copies every field set in other over c.
func (c *TuningConfig) Merge(other *TuningConfig) {
	if other == nil {
		return
	}
	mergePtr(&c.MarkerWeight, other.MarkerWeight)
	mergePtr(&c.MarkerRGBWeight, other.MarkerRGBWeight)
	mergePtr(&c.DepthWeight, other.DepthWeight)
	mergePtr(&c.DepthRGBWeight, other.DepthRGBWeight)
	mergePtr(&c.DepthScale, other.DepthScale)
	mergePtr(&c.FilterRGBOnly, other.FilterRGBOnly)
	mergePtr(&c.ProcessNoise, other.ProcessNoise)
	mergePtr(&c.MeasurementNoise, other.MeasurementNoise)
	mergePtr(&c.InitialUncertainty, other.InitialUncertainty)
	mergePtr(&c.MarkerHSVLower, other.MarkerHSVLower)
	mergePtr(&c.MarkerHSVUpper, other.MarkerHSVUpper)
	mergePtr(&c.MarkerMinArea, other.MarkerMinArea)
	mergePtr(&c.MarkerAnnotate, other.MarkerAnnotate)
	mergePtr(&c.MaxHands, other.MaxHands)
	mergePtr(&c.ModelComplexity, other.ModelComplexity)
	mergePtr(&c.MinDetectionConf, other.MinDetectionConf)
	mergePtr(&c.MinTrackingConf, other.MinTrackingConf)
	mergePtr(&c.PressDepth, other.PressDepth)
	mergePtr(&c.LayoutID, other.LayoutID)
	mergePtr(&c.FuseAllHands, other.FuseAllHands)
	mergePtr(&c.CameraFPS, other.CameraFPS)
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// Fusion returns the fusion engine configuration with overrides applied.
func (c *TuningConfig) Fusion() fusion.Config {
	cfg := fusion.DefaultConfig()
	setIf(&cfg.Weights.Marker, c.MarkerWeight)
	setIf(&cfg.Weights.MarkerRGB, c.MarkerRGBWeight)
	setIf(&cfg.Weights.Depth, c.DepthWeight)
	setIf(&cfg.Weights.DepthRGB, c.DepthRGBWeight)
	setIf(&cfg.Weights.DepthScale, c.DepthScale)
	setIf(&cfg.FilterRGBOnly, c.FilterRGBOnly)
	setIf(&cfg.Filter.ProcessNoise, c.ProcessNoise)
	setIf(&cfg.Filter.MeasurementNoise, c.MeasurementNoise)
	setIf(&cfg.Filter.InitialUncertainty, c.InitialUncertainty)
	return cfg
}

// Marker returns the marker detector configuration with overrides applied.
func (c *TuningConfig) Marker() marker.Config {
	cfg := marker.DefaultConfig()
	setIf(&cfg.Lower, c.MarkerHSVLower)
	setIf(&cfg.Upper, c.MarkerHSVUpper)
	setIf(&cfg.MinArea, c.MarkerMinArea)
	setIf(&cfg.Annotate, c.MarkerAnnotate)
	return cfg
}

// Detector returns the hand detector configuration with overrides applied.
func (c *TuningConfig) Detector() detector.Config {
	cfg := detector.DefaultConfig()
	setIf(&cfg.MaxHands, c.MaxHands)
	setIf(&cfg.ModelComplexity, c.ModelComplexity)
	setIf(&cfg.MinConfidence, c.MinDetectionConf)
	setIf(&cfg.MinTrackingConf, c.MinTrackingConf)
	return cfg
}

// GetPressDepth returns the key press depth or the default.
func (c *TuningConfig) GetPressDepth() float64 {
	if c.PressDepth == nil {
		return keyboard.DefaultPressDepth
	}
	return *c.PressDepth
}

// GetLayoutID returns the selected layout id, or "" for the built-in layout.
func (c *TuningConfig) GetLayoutID() string {
	if c.LayoutID == nil {
		return ""
	}
	return *c.LayoutID
}

// GetFuseAllHands reports whether every detected hand is fused.
func (c *TuningConfig) GetFuseAllHands() bool {
	return c.FuseAllHands != nil && *c.FuseAllHands
}

// GetCameraFPS returns the capture rate or the default.
func (c *TuningConfig) GetCameraFPS() int {
	if c.CameraFPS == nil {
		return 30
	}
	return *c.CameraFPS
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
