package lockin

import "gonum.org/v1/gonum/mat"

/*------------------------------------------------------------------
 *
 * Purpose:	Maintain the current-conservation ("bias resistor")
 *		coupling matrix and apply it and its inverse.
 *
 * Description:	Grounded on the original feedbacklockin/bias_resistor.py
 *		transfer matrix: a vector (1,0,...,0) is mapped to
 *		(1,-phi,...,-phi) where phi approaches 1/(M-1) as alpha
 *		approaches zero, so that current injected on one channel
 *		is drawn back out through the others in proportion,
 *		keeping the collective output near zero net current.
 *
 *------------------------------------------------------------------*/

// BiasMixer maps per-channel requested amplitudes to effective output
// amplitudes that approximately conserve current across a set of
// nominally-equal bias resistors.
type BiasMixer struct {
	channels int
	alpha    float64
	disabled []bool

	mix *mat.Dense

	lastIn  []float64
	lastOut []float64
}

// NewBiasMixer builds a BiasMixer with every channel enabled and
// alpha == 0 (strict current conservation).
func NewBiasMixer(channels int) *BiasMixer {
	b := &BiasMixer{
		channels: channels,
		disabled: make([]bool, channels),
		lastIn:   make([]float64, channels),
		lastOut:  make([]float64, channels),
	}
	b.rebuild()

	return b
}

// SetAlpha sets the correction factor (0 = strict conservation, 1 =
// identity) and rebuilds the mixing matrix.
func (b *BiasMixer) SetAlpha(alpha float64) {
	b.alpha = alpha
	b.rebuild()
}

// Alpha returns the current correction factor.
func (b *BiasMixer) Alpha() float64 { return b.alpha }

// SetDisabled replaces the disabled-channel mask and rebuilds the mixing
// matrix. Disabled rows/columns are zeroed outside the diagonal.
func (b *BiasMixer) SetDisabled(disabled []bool) {
	copy(b.disabled, disabled)
	b.rebuild()
}

func (b *BiasMixer) rebuild() {
	n := b.channels
	m := mat.NewDense(n, n, nil)

	enabledCount := 0

	for _, d := range b.disabled {
		if !d {
			enabledCount++
		}
	}

	if enabledCount <= 1 {
		for i := 0; i < n; i++ {
			m.Set(i, i, 1)
		}

		b.mix = m

		return
	}

	off := -(1 - b.alpha) / float64(enabledCount-1)

	for i := 0; i < n; i++ {
		m.Set(i, i, 1)

		for j := 0; j < n; j++ {
			if i == j {
				continue
			}

			if b.disabled[i] || b.disabled[j] {
				m.Set(i, j, 0)
			} else {
				m.Set(i, j, off)
			}
		}
	}

	b.mix = m
}

// Step applies the mixing matrix to v, remembering both the input and the
// result for a later Inverse call.
func (b *BiasMixer) Step(v []float64) []float64 {
	copy(b.lastIn, v)

	in := mat.NewVecDense(b.channels, v)

	var out mat.VecDense
	out.MulVec(b.mix, in)

	for i := 0; i < b.channels; i++ {
		b.lastOut[i] = out.AtVec(i)
	}

	result := make([]float64, b.channels)
	copy(result, b.lastOut)

	return result
}

// Inverse solves mix*x == lastOut for x using a general LU
// factorization. For enabledCount >= 2 the off-diagonal entries of an
// enabled row sum to -(1-alpha), so the matrix is strictly diagonally
// dominant (hence well-conditioned) for alpha > 0; at alpha == 0 every
// enabled row sums to zero and the matrix is singular. If the matrix is
// singular, identity is used instead
// -- lastOut is returned unchanged -- and a NumericError is returned so
// the caller can log the degeneracy; the returned vector is always
// usable.
func (b *BiasMixer) Inverse() ([]float64, error) {
	var lu mat.LU

	lu.Factorize(b.mix)

	if lu.Cond() > conditionEpsilon {
		out := make([]float64, b.channels)
		copy(out, b.lastOut)

		return out, &NumericError{Op: "bias_mixer.inverse", Msg: "singular mixing matrix, falling back to identity"}
	}

	rhs := mat.NewVecDense(b.channels, b.lastOut)

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, rhs); err != nil {
		out := make([]float64, b.channels)
		copy(out, b.lastOut)

		return out, &NumericError{Op: "bias_mixer.inverse", Msg: err.Error()}
	}

	out := make([]float64, b.channels)
	for i := 0; i < b.channels; i++ {
		out[i] = x.AtVec(i)
	}

	return out, nil
}

const conditionEpsilon = 1e12

// Channels returns the configured channel count.
func (b *BiasMixer) Channels() int { return b.channels }

// RowSum returns the sum of row i of the mixing matrix -- exposed for
// testing the current-conservation invariant directly.
func (b *BiasMixer) RowSum(i int) float64 {
	sum := 0.0
	for j := 0; j < b.channels; j++ {
		sum += b.mix.At(i, j)
	}

	return sum
}

// IsIdentity reports whether the mixing matrix is exactly the identity.
func (b *BiasMixer) IsIdentity() bool {
	for i := 0; i < b.channels; i++ {
		for j := 0; j < b.channels; j++ {
			want := 0.0
			if i == j {
				want = 1
			}

			if b.mix.At(i, j) != want {
				return false
			}
		}
	}

	return true
}
