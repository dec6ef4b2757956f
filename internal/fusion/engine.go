// Package fusion blends RGB landmarks, colour-marker centroids and depth
// tracker fingertips into one filtered 3D position per fingertip.
package fusion

import (
	"image"
	"log"

	"github.com/ayusman/fingerfuse/internal/depth"
	"github.com/ayusman/fingerfuse/internal/detector"
	"github.com/ayusman/fingerfuse/internal/filter"
)

// Weights are the fixed blend constants.
type Weights struct {
	// Marker and MarkerRGB weigh the normalized marker centroid against
	// the RGB landmark for x and y.
	Marker    float64
	MarkerRGB float64
	// Depth and DepthRGB weigh the scaled depth-tracker z against the RGB
	// landmark z.
	Depth    float64
	DepthRGB float64
	// DepthScale converts depth-tracker millimeters to the RGB depth scale
	// (z / DepthScale).
	DepthScale float64
}

// DefaultWeights returns the tuned blend weights.
func DefaultWeights() Weights {
	return Weights{
		Marker:     0.8,
		MarkerRGB:  0.2,
		Depth:      0.7,
		DepthRGB:   0.3,
		DepthScale: 1000,
	}
}

// Config configures an Engine.
type Config struct {
	Weights Weights
	Filter  filter.Config

	// FilterRGBOnly keeps the filters running on the raw RGB fingertips
	// when a frame has neither markers nor depth data. When false, such
	// frames return the RGB landmarks untouched and leave every filter
	// as it was.
	FilterRGBOnly bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Weights: DefaultWeights(),
		Filter:  filter.DefaultConfig(),
	}
}

// Engine owns one filter per tracked finger. It is not safe for
// concurrent use; the frame loop calls it sequentially.
type Engine struct {
	cfg     Config
	fingers [detector.NumFingers]*filter.Finger
}

// NewEngine creates an engine with fresh filters.
func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg}
	for i := range e.fingers {
		e.fingers[i] = filter.New(cfg.Filter)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Finger returns the filter of tracked finger i.
func (e *Engine) Finger(i int) *filter.Finger {
	return e.fingers[i]
}

// Fuse returns hand with its five fingertips replaced by filtered,
// blended positions. markers are pixel positions in an image of
// width x height; frame may be nil when the depth tracker sees no hand.
//
// Only the first depth hand is consulted regardless of which RGB hand is
// being fused. Marker i and depth tip i pair with tracked finger i by
// position alone.
func (e *Engine) Fuse(hand detector.HandLandmarks, frame *depth.Frame, markers []image.Point, width, height int) detector.HandLandmarks {
	fused := hand

	depthHand := depth.FirstHand(frame)
	if depthHand == nil && len(markers) == 0 && !e.cfg.FilterRGBOnly {
		return fused
	}

	measurements := e.Blend(&hand, depthHand, markers, width, height)
	for i, k := range e.fingers {
		k.Predict()
		if err := k.Update(measurements[i]); err != nil {
			log.Printf("fusion: finger %d update skipped: %v", i, err)
		}
		fused.SetFingertip(i, k.State())
	}

	return fused
}

// Blend computes the pre-filter measurement of every tracked finger.
func (e *Engine) Blend(hand *detector.HandLandmarks, depthHand *depth.Hand, markers []image.Point, width, height int) [detector.NumFingers]detector.Point3D {
	w := e.cfg.Weights
	var out [detector.NumFingers]detector.Point3D
	for i := range out {
		rgb := hand.Fingertip(i)
		p := rgb

		if i < len(markers) && width > 0 && height > 0 {
			mx := float64(markers[i].X) / float64(width)
			my := float64(markers[i].Y) / float64(height)
			p.X = mx*w.Marker + rgb.X*w.MarkerRGB
			p.Y = my*w.Marker + rgb.Y*w.MarkerRGB
		}

		if tip, ok := depthHand.Tip(i); ok {
			p.Z = tip.Z/w.DepthScale*w.Depth + rgb.Z*w.DepthRGB
		}

		out[i] = p
	}
	return out
}
