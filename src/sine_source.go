package lockin

import "math"

/*------------------------------------------------------------------
 *
 * Purpose:	Hold a cached reference sine and render it, scaled by a
 *		per-channel amplitude, into an output block.
 *
 * Description:	SineSource never calls math.Sin outside of construction.
 *		The reference wraps every Points samples so phase stays
 *		coherent across successive render() calls with no running
 *		phase accumulator to drift.
 *
 *------------------------------------------------------------------*/

// SineSource renders Channels independent sine waves sharing one reference
// period of Points samples, each scaled by its own amplitude.
type SineSource struct {
	channels int
	points   int

	sineRef []float64 // length points, sin(2*pi*k/points)
	amp     []float64 // length channels

	// block is laid out point-major, channel-minor: block[k*channels+i].
	block []float64

	dirty []bool
}

// NewSineSource builds a SineSource for the given channel count and
// points-per-period. Both must be positive.
func NewSineSource(channels, points int) *SineSource {
	s := &SineSource{
		channels: channels,
		points:   points,
		sineRef:  make([]float64, points),
		amp:      make([]float64, channels),
		block:    make([]float64, points*channels),
		dirty:    make([]bool, channels),
	}

	for k := 0; k < points; k++ {
		s.sineRef[k] = math.Sin(2 * math.Pi * float64(k) / float64(points))
	}

	for i := range s.dirty {
		s.dirty[i] = true
	}

	return s
}

// SetAmp sets the amplitude of a single channel's sine wave.
func (s *SineSource) SetAmp(channel int, a float64) {
	s.amp[channel] = a
	s.dirty[channel] = true
}

// SetAmps bulk-updates every channel's amplitude. A NaN entry leaves that
// channel's amplitude unchanged. This is purely an input convention for
// SetAmps itself: the feedback engine passes a full vector of mixed
// amplitudes and never NaN, and nothing downstream of SineSource ever
// sees or depends on NaN.
func (s *SineSource) SetAmps(amps []float64) {
	for i, a := range amps {
		if math.IsNaN(a) {
			continue
		}

		s.amp[i] = a
		s.dirty[i] = true
	}
}

// Render ensures block[k*channels+i] == amp[i]*sineRef[k] for every cell
// and returns it. The returned slice is owned by SineSource and is reused
// across calls.
func (s *SineSource) Render() []float64 {
	for i := 0; i < s.channels; i++ {
		if !s.dirty[i] {
			continue
		}

		a := s.amp[i]
		for k := 0; k < s.points; k++ {
			s.block[k*s.channels+i] = a * s.sineRef[k]
		}

		s.dirty[i] = false
	}

	return s.block
}

// Points returns the configured points-per-period.
func (s *SineSource) Points() int {
	return s.points
}

// Channels returns the configured channel count.
func (s *SineSource) Channels() int {
	return s.channels
}

// Amps returns a copy of the current per-channel amplitude vector.
func (s *SineSource) Amps() []float64 {
	out := make([]float64, s.channels)
	copy(out, s.amp)

	return out
}
