package lockin

import (
	"math"
	"sync/atomic"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Orchestrate one control cycle: demodulate, average,
 *		run PI feedback, mix for current conservation, and update
 *		the output sine amplitudes.
 *
 * Description:	PI feedback runs on the unaveraged X, while the
 *		published X/Y/R/phi and the raw series are averaged for
 *		display.
 *
 *------------------------------------------------------------------*/

// Snapshot is the immutable state the engine publishes after each step.
// Readers (control plane, TCP responders) only ever see a Snapshot; they
// never touch engine-owned slices directly.
type Snapshot struct {
	Channels int

	X, Y, R, Phi []float64
	AmpOut       []float64
	Setpoint     []float64
	Enabled      []bool
	SeriesAvg    []float64 // point-major/channel-minor, Points*Channels long
}

// FeedbackEngine ties together SineSource, LockIn, the two Averagers,
// PiController and BiasMixer into the per-buffer control cycle.
type FeedbackEngine struct {
	channels int
	points   int
	freq     float64

	lockin *LockIn
	pi     *PiController
	mixer  *BiasMixer
	sines  *SineSource

	ampAvg    Averager
	seriesAvg Averager
	avgMode   AvgMode
	avgAmount float64

	enabled []bool
	ampOut  []float64

	x, y, r, phi []float64

	snap atomic.Pointer[Snapshot]
}

// NewFeedbackEngine builds the control kernel for channels inputs/outputs
// sampled at points-per-period against the given reference frequency.
func NewFeedbackEngine(channels, points int, freq float64) *FeedbackEngine {
	e := &FeedbackEngine{
		channels:  channels,
		points:    points,
		freq:      freq,
		lockin:    NewLockIn(points),
		pi:        NewPiController(channels),
		mixer:     NewBiasMixer(channels),
		sines:     NewSineSource(channels, points),
		ampAvg:    NewIdentityAverager(),
		seriesAvg: NewIdentityAverager(),
		enabled:   make([]bool, channels),
		ampOut:    make([]float64, channels),
		x:         make([]float64, channels),
		y:         make([]float64, channels),
		r:         make([]float64, channels),
		phi:       make([]float64, channels),
	}

	e.publish(make([]float64, points*channels))

	return e
}

// Channels returns the configured channel count.
func (e *FeedbackEngine) Channels() int { return e.channels }

// Points returns the configured points-per-period.
func (e *FeedbackEngine) Points() int { return e.points }

// SetSetpoint sets channel i's target X value.
func (e *FeedbackEngine) SetSetpoint(i int, v float64) {
	e.pi.SetSetpoint(i, v)
}

// SetAmp requests an explicit output amplitude for channel i. It is only
// honored while the channel's feedback is disabled; the value takes
// effect on the next Step, after passing through the bias mixer like
// every other requested amplitude.
func (e *FeedbackEngine) SetAmp(i int, v float64) {
	if !e.enabled[i] {
		e.ampOut[i] = v
	}
}

// SetFeedbackEnabled is the delicate control-plane operation: update the
// enable mask, rebuild the mixer's disabled mask to match, re-seed the PI
// integrator from the mixer's inverse so the next step is continuous,
// then flip the PI's own per-channel enable.
func (e *FeedbackEngine) SetFeedbackEnabled(i int, on bool) {
	e.enabled[i] = on

	disabled := make([]bool, e.channels)
	for j, en := range e.enabled {
		disabled[j] = !en
	}

	e.mixer.SetDisabled(disabled)

	preset, err := e.mixer.Inverse()
	if err != nil {
		Log.Warn("bias mixer singular while re-seeding integrator", "err", err)
	}

	e.pi.ZeroErrors(preset)
	e.pi.SetOutputEnabled(i, on)
}

// SetAveraging reconfigures both the amplitude and the raw-series
// averagers to the given mode and amount.
func (e *FeedbackEngine) SetAveraging(mode AvgMode, amount float64) {
	e.avgMode = mode
	e.avgAmount = amount
	e.ampAvg = NewAverager(mode, amount)
	e.seriesAvg = NewAverager(mode, amount)
}

// ResetAveraging clears both averagers' accumulated history without
// changing their mode or amount.
func (e *FeedbackEngine) ResetAveraging() {
	e.ampAvg.Reset()
	e.seriesAvg.Reset()
}

// SetBiasAlpha sets the mixer's current-conservation correction factor.
func (e *FeedbackEngine) SetBiasAlpha(alpha float64) {
	e.mixer.SetAlpha(alpha)
}

// SetReference selects the PI's virtual-ground reference channel, or a
// negative value for none.
func (e *FeedbackEngine) SetReference(ch int) {
	e.pi.SetReference(ch)
}

// AutotunePID estimates the integral gain: if the largest current output
// amplitude exceeds 1mV, set Ki to scale*max|amp_out|/max|R| and return
// that ratio. Otherwise Ki is left unchanged and a NumericError is
// returned.
func (e *FeedbackEngine) AutotunePID(scale float64) (float64, error) {
	maxAmp := 0.0
	for _, a := range e.ampOut {
		if abs := math.Abs(a); abs > maxAmp {
			maxAmp = abs
		}
	}

	if maxAmp <= 1e-3 {
		return 0, &NumericError{Op: "autotune", Msg: "max|amp_out| too small, gains left unchanged"}
	}

	maxR := 0.0
	for _, r := range e.r {
		if r > maxR {
			maxR = r
		}
	}

	if maxR == 0 {
		return 0, &NumericError{Op: "autotune", Msg: "max|R| is zero, gains left unchanged"}
	}

	ratio := scale * maxAmp / maxR
	e.pi.SetKi(ratio)

	return ratio, nil
}

// PI exposes the shared PI controller for direct gain/reference control
// plane operations that don't need engine-level bookkeeping.
func (e *FeedbackEngine) PI() *PiController { return e.pi }

// Mixer exposes the bias mixer, primarily for tests and diagnostics.
func (e *FeedbackEngine) Mixer() *BiasMixer { return e.mixer }

// Step runs exactly one control cycle over inBlock (point-major,
// channel-minor, Points*Channels long).
func (e *FeedbackEngine) Step(inBlock []float64) {
	x, y := e.lockin.Calc(inBlock, e.channels)

	seriesAvg := e.seriesAvg.Step(inBlock)

	stacked := make([]float64, 2*e.channels)
	copy(stacked[:e.channels], x)
	copy(stacked[e.channels:], y)

	avged := e.ampAvg.Step(stacked)
	avgedX := avged[:e.channels]
	avgedY := avged[e.channels:]

	piOut := e.pi.Step(x) // feedback runs on the unaveraged X

	requested := make([]float64, e.channels)
	for i := 0; i < e.channels; i++ {
		if e.enabled[i] {
			requested[i] = piOut[i]
		} else {
			requested[i] = e.ampOut[i]
		}
	}

	mixed := e.mixer.Step(requested)
	e.sines.SetAmps(mixed)

	for i := 0; i < e.channels; i++ {
		if e.enabled[i] {
			e.ampOut[i] = mixed[i]
		}
	}

	for i := 0; i < e.channels; i++ {
		e.x[i] = avgedX[i]
		e.y[i] = avgedY[i]
		e.r[i], e.phi[i] = RPhi(avgedX[i], avgedY[i])
	}

	e.publish(seriesAvg)
}

func (e *FeedbackEngine) publish(seriesAvg []float64) {
	setpoint := make([]float64, e.channels)
	for i := range setpoint {
		setpoint[i] = e.pi.Setpoint(i)
	}

	snap := &Snapshot{
		Channels:  e.channels,
		X:         append([]float64(nil), e.x...),
		Y:         append([]float64(nil), e.y...),
		R:         append([]float64(nil), e.r...),
		Phi:       append([]float64(nil), e.phi...),
		AmpOut:    append([]float64(nil), e.ampOut...),
		Setpoint:  setpoint,
		Enabled:   append([]bool(nil), e.enabled...),
		SeriesAvg: append([]float64(nil), seriesAvg...),
	}

	e.snap.Store(snap)
}

// Snapshot returns the most recently published engine state. Safe to
// call from any goroutine.
func (e *FeedbackEngine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// SineOut returns the engine's output to the DAQ: the rendered sine
// block, clipped to +-10V.
func (e *FeedbackEngine) SineOut() []float64 {
	rendered := e.sines.Render()
	out := make([]float64, len(rendered))

	for i, v := range rendered {
		out[i] = clip(v, -10, 10)
	}

	return out
}
