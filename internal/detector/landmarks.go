// Package detector provides the RGB hand-pose estimator interface and landmark types.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// NumFingers is the number of tracked fingertips per hand.
const NumFingers = 5

// TipStride is the landmark distance between consecutive fingertips.
const TipStride = 4

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point3D) Distance(q Point3D) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// FingertipIndex returns the landmark index of tracked finger i.
// Fingers step from IndexTip with stride TipStride; the step past
// PinkyTip wraps around the tip ring to ThumbTip.
func FingertipIndex(i int) int {
	return (IndexTip-ThumbTip+TipStride*i)%(NumFingers*TipStride) + ThumbTip
}

// Fingertip returns the landmark of tracked finger i.
func (h *HandLandmarks) Fingertip(i int) Point3D {
	return h.Points[FingertipIndex(i)]
}

// SetFingertip overwrites the landmark of tracked finger i.
func (h *HandLandmarks) SetFingertip(i int, p Point3D) {
	h.Points[FingertipIndex(i)] = p
}

// Pixel converts a normalized landmark to pixel coordinates for an image
// of the given size.
func (p Point3D) Pixel(width, height int) (int, int) {
	return int(p.X * float64(width)), int(p.Y * float64(height))
}
