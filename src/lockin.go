package lockin

import "math"

/*------------------------------------------------------------------
 *
 * Purpose:	Synchronous (X,Y) demodulation of N channels against a
 *		shared reference frequency.
 *
 * Description:	Lockin amplifiers rely on sines and cosines of differing
 *		frequency being orthogonal: multiplying a long time series
 *		against a sine or cosine at a given frequency isolates the
 *		Fourier component of the series at that frequency. The
 *		normalized reference vectors below make the inner product
 *		come out directly in amplitude units (see calc_amps in the
 *		original feedbacklockin/lockin_calc.py).
 *
 *------------------------------------------------------------------*/

// LockIn computes the in-phase (X) and quadrature (Y) components of N
// channels sampled at Points-per-period against the reference frequency.
type LockIn struct {
	points int
	sinRef []float64
	cosRef []float64
}

// NewLockIn precomputes the sine and cosine references for the given
// points-per-period, each divided by its own sum of squares so that its
// inner product with a unit-amplitude tone of the same shape is 1.
func NewLockIn(points int) *LockIn {
	l := &LockIn{points: points}
	l.setPoints(points)

	return l
}

func (l *LockIn) setPoints(points int) {
	l.points = points
	l.sinRef = make([]float64, points)
	l.cosRef = make([]float64, points)

	var sinSq, cosSq float64

	for k := 0; k < points; k++ {
		theta := 2 * math.Pi * float64(k) / float64(points)
		s := math.Sin(theta)
		c := math.Cos(theta)
		l.sinRef[k] = s
		l.cosRef[k] = c
		sinSq += s * s
		cosSq += c * c
	}

	// P=2 or P=1 make one of the reference curves identically zero (no
	// sine content is observable with that few samples per period); guard
	// the division rather than propagating NaN/Inf through every step.
	// The threshold rather than an exact zero test matters for P=2, where
	// sin(pi) rounds to ~1.2e-16 instead of 0.
	for k := range l.sinRef {
		if sinSq > 1e-12 {
			l.sinRef[k] /= sinSq
		}

		if cosSq > 1e-12 {
			l.cosRef[k] /= cosSq
		}
	}
}

// Calc multiplies block (point-major, channel-minor: block[k*channels+i])
// by the precomputed references and returns the per-channel X (cosine
// projection) and Y (sine projection) components.
func (l *LockIn) Calc(block []float64, channels int) (x, y []float64) {
	x = make([]float64, channels)
	y = make([]float64, channels)

	for k := 0; k < l.points; k++ {
		cw := l.cosRef[k]
		sw := l.sinRef[k]
		row := block[k*channels : k*channels+channels]

		for i, v := range row {
			x[i] += cw * v
			y[i] += sw * v
		}
	}

	return x, y
}

// Points returns the configured points-per-period.
func (l *LockIn) Points() int { return l.points }

// RPhi returns magnitude and phase (in degrees) for a single (x,y) pair.
func RPhi(x, y float64) (r, phi float64) {
	r = math.Hypot(x, y)
	phi = math.Atan2(y, x) * 180 / math.Pi

	return r, phi
}
