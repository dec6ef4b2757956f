// Package filter provides the per-finger position estimator: a discrete
// linear Kalman filter over a 3D position with identity motion and
// measurement models.
package filter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/fingerfuse/internal/detector"
)

// dim is the size of both the state and the measurement vectors.
const dim = 3

// Config holds the fixed noise constants of a finger filter.
type Config struct {
	// ProcessNoise is added to each diagonal covariance entry per predict step.
	ProcessNoise float64
	// MeasurementNoise is the variance of each measured coordinate.
	MeasurementNoise float64
	// InitialUncertainty scales the identity initial covariance.
	InitialUncertainty float64
}

// DefaultConfig returns the tuned filter constants.
func DefaultConfig() Config {
	return Config{
		ProcessNoise:       0.1,
		MeasurementNoise:   5.0,
		InitialUncertainty: 1000,
	}
}

// Finger smooths one fingertip's 3D position over time.
// The zero value is not usable; create instances with New.
type Finger struct {
	x *mat.VecDense // state estimate
	p *mat.Dense    // state covariance
	f *mat.Dense    // motion model
	h *mat.Dense    // measurement model
	q *mat.Dense    // process noise
	r *mat.Dense    // measurement noise
}

// New creates a filter at the origin with covariance cfg.InitialUncertainty * I.
func New(cfg Config) *Finger {
	return &Finger{
		x: mat.NewVecDense(dim, nil),
		p: scaledIdentity(cfg.InitialUncertainty),
		f: scaledIdentity(1),
		h: scaledIdentity(1),
		q: scaledIdentity(cfg.ProcessNoise),
		r: scaledIdentity(cfg.MeasurementNoise),
	}
}

// Predict advances the filter one step: x = F x, P = F P F^T + Q.
// With the identity motion model the position stays put and only the
// uncertainty grows.
func (k *Finger) Predict() {
	var x mat.VecDense
	x.MulVec(k.f, k.x)
	k.x = &x

	var fp, fpft mat.Dense
	fp.Mul(k.f, k.p)
	fpft.Mul(&fp, k.f.T())
	fpft.Add(&fpft, k.q)
	k.p = &fpft
}

// Update corrects the prediction with measurement z. The estimate moves
// toward z in proportion to the current uncertainty relative to the
// measurement noise.
func (k *Finger) Update(z detector.Point3D) error {
	meas := mat.NewVecDense(dim, []float64{z.X, z.Y, z.Z})

	// Innovation y = z - H x.
	var hx, y mat.VecDense
	hx.MulVec(k.h, k.x)
	y.SubVec(meas, &hx)

	// S = H P H^T + R.
	var hp, s mat.Dense
	hp.Mul(k.h, k.p)
	s.Mul(&hp, k.h.T())
	s.Add(&s, k.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return fmt.Errorf("invert innovation covariance: %w", err)
	}

	// K = P H^T S^-1.
	var pht, gain mat.Dense
	pht.Mul(k.p, k.h.T())
	gain.Mul(&pht, &sInv)

	var ky mat.VecDense
	ky.MulVec(&gain, &y)
	k.x.AddVec(k.x, &ky)

	// P = (I - K H) P.
	var kh, ikh, p mat.Dense
	kh.Mul(&gain, k.h)
	ikh.Sub(scaledIdentity(1), &kh)
	p.Mul(&ikh, k.p)
	k.p = &p

	return nil
}

// State returns the current position estimate.
func (k *Finger) State() detector.Point3D {
	return detector.Point3D{X: k.x.AtVec(0), Y: k.x.AtVec(1), Z: k.x.AtVec(2)}
}

// Covariance returns a copy of the current state covariance.
func (k *Finger) Covariance() *mat.Dense {
	return mat.DenseCopyOf(k.p)
}

// Uncertainty returns the trace of the state covariance.
func (k *Finger) Uncertainty() float64 {
	return mat.Trace(k.p)
}

func scaledIdentity(v float64) *mat.Dense {
	m := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		m.Set(i, i, v)
	}
	return m
}
