package lockin

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomConductanceMatrixHasZeroRowSums(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tm := NewRandomConductanceMatrix(6, rng)

	for i := 0; i < 6; i++ {
		row := make([]float64, 6)
		for j := range row {
			row[j] = 1
		}

		out := tm.Xfer(row)
		assert.InDelta(t, 0, out[i], 1e-9)
	}
}

func TestBiasResistorModThenInvertSucceeds(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tm := NewRandomConductanceMatrix(4, rng)
	tm.BiasResistorMod(100)
	tm.Scale(0.01)

	require.NoError(t, tm.Invert())

	out := tm.Xfer([]float64{1, 0, 0, 0})
	assert.Len(t, out, 4)
}

func TestRingTransferMatrixZeroRowSums(t *testing.T) {
	tm := NewRingTransferMatrix(4)
	out := tm.Xfer([]float64{1, 1, 1, 1})

	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-9)
	}
}
