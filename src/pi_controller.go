package lockin

/*------------------------------------------------------------------
 *
 * Purpose:	Per-channel discrete PI loop with saturation,
 *		anti-windup, optional reference-channel subtraction and
 *		per-channel enable.
 *
 * Description:	There is no explicit timebase -- Step is called once per
 *		engine cycle and every channel is independent except for
 *		the shared gains and the optional reference subtraction.
 *
 *------------------------------------------------------------------*/

const (
	piOutMin = -10.0
	piOutMax = 10.0
)

// PiController runs N independent saturating PI loops sharing one Ki/Kp
// pair and an optional reference channel.
type PiController struct {
	channels int

	integrator []float64
	setpoint   []float64
	enabled    []bool

	ki, kp float64

	// refChannel < 0 means "no reference channel".
	refChannel int
}

// NewPiController builds a PiController for the given channel count. All
// channels start disabled with zero setpoint and no reference channel.
func NewPiController(channels int) *PiController {
	return &PiController{
		channels:   channels,
		integrator: make([]float64, channels),
		setpoint:   make([]float64, channels),
		enabled:    make([]bool, channels),
		refChannel: -1,
	}
}

// SetKi sets the shared integral gain. Setting it to zero resets every
// channel's integrator to zero.
func (p *PiController) SetKi(ki float64) {
	p.ki = ki

	if ki == 0 {
		for i := range p.integrator {
			p.integrator[i] = 0
		}
	}
}

// SetKp sets the shared proportional gain.
func (p *PiController) SetKp(kp float64) {
	p.kp = kp
}

// Ki returns the current shared integral gain.
func (p *PiController) Ki() float64 { return p.ki }

// Kp returns the current shared proportional gain.
func (p *PiController) Kp() float64 { return p.kp }

// SetReference selects a channel whose input is subtracted from every
// channel's input before the error is computed. A negative value clears
// the reference (equivalent to a virtual ground of zero).
func (p *PiController) SetReference(channel int) {
	p.refChannel = channel
}

// Reference returns the current reference channel, or -1 if none is set.
func (p *PiController) Reference() int { return p.refChannel }

// SetSetpoint sets channel i's target value. If Ki is nonzero the
// integrator is adjusted so the instantaneous output does not jump.
func (p *PiController) SetSetpoint(i int, s float64) {
	old := p.setpoint[i]
	p.setpoint[i] = s

	if p.ki != 0 {
		p.integrator[i] += (old - s) * p.kp / p.ki
	}
}

// Setpoint returns channel i's current setpoint.
func (p *PiController) Setpoint(i int) float64 { return p.setpoint[i] }

// SetOutputEnabled sets whether channel i's PI output overrides the
// manual amplitude.
func (p *PiController) SetOutputEnabled(i int, on bool) {
	p.enabled[i] = on
}

// Enabled reports whether channel i's PI output is currently active.
func (p *PiController) Enabled(i int) bool { return p.enabled[i] }

// ZeroErrors replaces the integrator vector outright, typically with the
// bias mixer's inverse so a structural change doesn't produce a output
// discontinuity. A nil vec resets every integrator to zero, leaving the
// proportional term as the sole contributor to the next Step's output.
func (p *PiController) ZeroErrors(vec []float64) {
	if vec == nil {
		for i := range p.integrator {
			p.integrator[i] = 0
		}

		return
	}

	copy(p.integrator, vec)
}

// Integrator returns a copy of the current integrator vector.
func (p *PiController) Integrator() []float64 {
	out := make([]float64, len(p.integrator))
	copy(out, p.integrator)

	return out
}

// Step performs one PI cycle and returns the per-channel output. Output
// for channels with Enabled(i) == false is unspecified; the caller is
// expected to substitute its own held amplitude for those channels.
func (p *PiController) Step(inputs []float64) []float64 {
	u := inputs

	if p.refChannel >= 0 {
		u = make([]float64, p.channels)
		ref := inputs[p.refChannel]

		for i, v := range inputs {
			u[i] = v - ref
		}
	}

	out := make([]float64, p.channels)

	for i := 0; i < p.channels; i++ {
		err := p.setpoint[i] - u[i]
		p.integrator[i] += err * p.ki

		if !p.enabled[i] {
			p.integrator[i] = 0
		}

		raw := err*p.kp + p.integrator[i]

		switch {
		case raw < piOutMin:
			out[i] = piOutMin
			p.integrator[i] -= err * p.ki
		case raw > piOutMax:
			out[i] = piOutMax
			p.integrator[i] -= err * p.ki
		default:
			out[i] = raw
		}
	}

	return out
}
