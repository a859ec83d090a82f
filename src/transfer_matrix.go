package lockin

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

/*------------------------------------------------------------------
 *
 * Purpose:	A general N*N transfer matrix, with constructors for
 *		randomized multi-terminal resistor-network models used by
 *		the simulation DAQ backend.
 *
 * Description:	Grounded on the original feedbacklockin/tmm.py. A random
 *		conductance matrix is built negative-semi-definite so that
 *		the eigenvector (1,1,...,1) has eigenvalue zero -- a DC
 *		offset applied uniformly to every terminal produces no
 *		current, the same invariant BiasMixer enforces for output
 *		amplitudes. biasResistorMod turns the conductance matrix
 *		into Ohm's-law form (R*G + I) relating output voltage to
 *		terminal voltage, which is then inverted for use as a
 *		voltage-in/voltage-out transfer function.
 *
 *------------------------------------------------------------------*/

// TransferMatrixModel stores an arbitrary N*N matrix and applies it (or
// its structural variants) to length-N vectors.
type TransferMatrixModel struct {
	channels int
	m        *mat.Dense
}

// NewRingTransferMatrix builds a transfer matrix modeling a ring of unit
// resistors connecting channel i to channel i+1 (wrapping around).
func NewRingTransferMatrix(channels int) *TransferMatrixModel {
	t := &TransferMatrixModel{channels: channels, m: mat.NewDense(channels, channels, nil)}

	for i := 0; i < channels-1; i++ {
		t.m.Set(i, i+1, -0.5)
		t.m.Set(i+1, i, -0.5)
		t.m.Set(i, i, 1.0)
	}

	t.m.Set(channels-1, channels-1, 1.0)
	t.m.Set(0, channels-1, -0.5)
	t.m.Set(channels-1, 0, -0.5)

	return t
}

// NewRandomConductanceMatrix builds a random, negative-semi-definite
// conductance matrix (via -A^T*A) and then forces its diagonal so every
// row sums to zero, guaranteeing the all-ones vector is a zero
// eigenvector (a DC offset across every terminal draws no current).
func NewRandomConductanceMatrix(channels int, rng *rand.Rand) *TransferMatrixModel {
	a := mat.NewDense(channels, channels, nil)

	for i := 0; i < channels; i++ {
		for j := 0; j < channels; j++ {
			a.Set(i, j, rng.Float64()/2.0)
		}
	}

	var g mat.Dense
	g.Mul(a.T(), a)
	g.Scale(-1, &g)

	t := &TransferMatrixModel{channels: channels, m: &g}
	t.zeroOutRows()

	return t
}

func (t *TransferMatrixModel) zeroOutRows() {
	for i := 0; i < t.channels; i++ {
		sum := 0.0
		for j := 0; j < t.channels; j++ {
			sum += t.m.At(i, j)
		}

		t.m.Set(i, i, t.m.At(i, i)-sum)
	}
}

// BiasResistorMod converts a conductance matrix G into Ohm's-law form
// R*G + I, modeling GV = I = (Vout-V)/R, i.e. (R*G+I)*V = Vout.
func (t *TransferMatrixModel) BiasResistorMod(r float64) {
	var scaled mat.Dense
	scaled.Scale(r, t.m)

	for i := 0; i < t.channels; i++ {
		scaled.Set(i, i, scaled.At(i, i)+1)
	}

	t.m = &scaled
}

// Scale multiplies every entry of the matrix by factor.
func (t *TransferMatrixModel) Scale(factor float64) {
	var scaled mat.Dense
	scaled.Scale(factor, t.m)
	t.m = &scaled
}

// Invert replaces the stored matrix with its inverse. Returns a
// NumericError (matrix left unchanged) if the matrix is singular.
func (t *TransferMatrixModel) Invert() error {
	var inv mat.Dense
	if err := inv.Inverse(t.m); err != nil {
		return &NumericError{Op: "transfer_matrix.invert", Msg: err.Error()}
	}

	t.m = &inv

	return nil
}

// Xfer applies the matrix to data, returning m*data.
func (t *TransferMatrixModel) Xfer(data []float64) []float64 {
	v := mat.NewVecDense(t.channels, data)

	var out mat.VecDense
	out.MulVec(t.m, v)

	result := make([]float64, t.channels)
	for i := 0; i < t.channels; i++ {
		result[i] = out.AtVec(i)
	}

	return result
}
