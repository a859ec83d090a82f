package lockin

/*------------------------------------------------------------------
 *
 * Purpose:	Narrow capability interface shared by the hardware and
 *		simulation acquisition/generation backends.
 *
 * Description:	Both the hardware and simulation backends expose the same
 *		set_* / init / start / stop / set_output / get_input
 *		surface plus a data_ready notification, so FeedbackEngine
 *		and ControlPlane never need to know which is in use. Driver
 *		bindings to specific DAQ hardware are out of scope for this
 *		system; DaqPort is the seam that keeps them out.
 *
 *------------------------------------------------------------------*/

// DaqPort is the engine's view of an acquisition/generation backend. All
// methods except GetInput/SetOutput are expected to be called only from
// the control plane during setup, never concurrently with DataReady
// firing.
type DaqPort interface {
	// SetChannels configures the driver-specific input and output
	// channel names/specs.
	SetChannels(inputSpec, outputSpec []string)
	// SetClocks wires the output clock source/channel to the input
	// clock terminal, establishing sample-accurate alignment.
	SetClocks(outputClockSrc, outputClockChan, inputClockChan string)
	// SetFrequency sets the reference frequency in Hz; sample rate is
	// frequency * points.
	SetFrequency(hz float64)
	// Init performs one-time hardware/backend setup. Failures here are
	// fatal.
	Init() error
	// Start begins acquisition/generation. DataReady begins firing
	// after Start returns successfully.
	Start() error
	// Stop signals both worker threads (or the timer, in the
	// simulation backend) to terminate at their next loop head.
	Stop()
	// SetOutput updates the working output buffer; non-blocking. block
	// is point-major, channel-minor: block[k*channels+i].
	SetOutput(block []float64)
	// GetInput returns a consistent snapshot of the most recently
	// acquired input buffer, point-major channel-minor.
	GetInput() []float64
	// DataReady fires once per acquired buffer.
	DataReady() <-chan struct{}
}

// Block is a point-major, channel-minor sample buffer: index
// k*channels+i holds point k of channel i.
type Block []float64

// At returns the sample for point k, channel i.
func (b Block) At(k, channels, i int) float64 {
	return b[k*channels+i]
}
