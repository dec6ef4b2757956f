package detector

import "gocv.io/x/gocv"

// Detector defines the interface for RGB hand-pose estimators.
type Detector interface {
	// Detect analyzes a BGR video frame and returns the landmarks of each
	// detected hand. Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// ModelComplexity selects the landmark model (0 = lite, 1 = full).
	ModelComplexity int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns the estimator settings used for fingertip tracking.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		ModelComplexity: 0,
		MinConfidence:   0.7,
		MinTrackingConf: 0.7,
	}
}
