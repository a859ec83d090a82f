package lockin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationDaqPortProducesData(t *testing.T) {
	daq := NewSimulationDaqPort(4, 64, 42)
	daq.SetFrequency(200) // fast so the test doesn't wait long
	require.NoError(t, daq.Init())
	require.NoError(t, daq.Start())

	defer daq.Stop()

	daq.SetOutput(make([]float64, 4*64))

	select {
	case <-daq.DataReady():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for data_ready")
	}

	in := daq.GetInput()
	assert.Len(t, in, 4*64)
}

func TestRollFloat64(t *testing.T) {
	v := []float64{1, 2, 3, 4}
	assert.Equal(t, []float64{4, 1, 2, 3}, rollFloat64(v, 1))
	assert.Equal(t, []float64{2, 3, 4, 1}, rollFloat64(v, -1))
	assert.Equal(t, v, rollFloat64(v, 0))
	assert.Equal(t, v, rollFloat64(v, 4))
}

func TestClip(t *testing.T) {
	assert.Equal(t, 10.0, clip(20, -10, 10))
	assert.Equal(t, -10.0, clip(-20, -10, 10))
	assert.Equal(t, 3.0, clip(3, -10, 10))
}
