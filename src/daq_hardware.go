package lockin

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Drive real hardware with two cooperating worker
 *		goroutines in place of a specific DAQ card's driver: an
 *		output worker that blocks until the device is ready for the
 *		next period (hardware back-pressure) and an input worker
 *		that reads one extra channel to cancel a multiplexing
 *		artifact and discards it before publishing.
 *
 * Description:	A duplex PortAudio stream is a real, buildable stand-in
 *		for that contract shape without committing to any one
 *		vendor's DAQ driver bindings.
 *
 *------------------------------------------------------------------*/

// HardwareDaqPort drives a PortAudio duplex stream as a stand-in for the
// output/input DAQ task pair of the original hardware backend. One
// worker goroutine writes full-buffer output periods, backpressured by
// the device; a second reads one doubled input channel per period,
// discarding the duplicate exactly as the NI-DAQmx implementation did to
// cancel a multiplexing artifact.
type HardwareDaqPort struct {
	channels int
	points   int
	freq     float64

	stream *portaudio.Stream

	outScratch []float32 // points*channels, what we write to the device
	inScratch  []float32 // points*(channels+1), what the device hands back

	mu       sync.Mutex
	outBlock []float64 // caller's requested output, point-major/channel-minor
	inBlock  []float64 // last published input, point-major/channel-minor

	dataReady chan struct{}
	stop      chan struct{}
	wg        sync.WaitGroup
	running   bool
}

// NewHardwareDaqPort builds a hardware backend for the given channel
// count and points-per-period. No device I/O happens until Init/Start.
func NewHardwareDaqPort(channels, points int) *HardwareDaqPort {
	return &HardwareDaqPort{
		channels:   channels,
		points:     points,
		outScratch: make([]float32, points*channels),
		inScratch:  make([]float32, points*(channels+1)),
		outBlock:   make([]float64, points*channels),
		inBlock:    make([]float64, points*channels),
		dataReady:  make(chan struct{}, 1),
	}
}

func (h *HardwareDaqPort) SetChannels(inputSpec, outputSpec []string) {}

func (h *HardwareDaqPort) SetClocks(outputClockSrc, outputClockChan, inputClockChan string) {
	// The output device is the clock master; its sample clock must be
	// routed to the input device's clock terminal by the concrete
	// driver binding, which is out of scope for this generic backend.
}

func (h *HardwareDaqPort) SetFrequency(hz float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.freq = hz
}

// Init opens the duplex stream. One extra input channel is requested to
// mirror the doubled-channel multiplexing workaround of the original
// NI-DAQmx backend.
func (h *HardwareDaqPort) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return &DaqError{Op: "portaudio.Initialize", Err: err}
	}

	h.mu.Lock()
	freq := h.freq
	h.mu.Unlock()

	if freq <= 0 {
		return &DaqError{Op: "init", Err: errInvalidFrequency}
	}

	sampleRate := freq * float64(h.points)

	params := portaudio.LowLatencyParameters(
		portaudio.DefaultInputDevice(),
		portaudio.DefaultOutputDevice(),
	)
	params.Input.Channels = h.channels + 1
	params.Output.Channels = h.channels
	params.SampleRate = sampleRate
	params.FramesPerBuffer = h.points

	stream, err := portaudio.OpenStream(params, h.inScratch, h.outScratch)
	if err != nil {
		return &DaqError{Op: "portaudio.OpenStream", Err: err}
	}

	h.stream = stream

	return nil
}

// Start begins the output and input worker goroutines. The input task is
// logically downstream of the output task's clock -- PortAudio starts
// both directions of a duplex stream together, so sample-accurate
// alignment falls out of opening a single stream rather than sequencing
// two independent task starts.
func (h *HardwareDaqPort) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()

		return nil
	}

	h.running = true
	h.mu.Unlock()

	if err := h.stream.Start(); err != nil {
		return &DaqError{Op: "stream.Start", Err: err}
	}

	h.stop = make(chan struct{})

	h.wg.Add(2)
	go h.outputLoop()
	go h.inputLoop()

	return nil
}

func (h *HardwareDaqPort) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()

		return
	}

	h.running = false
	h.mu.Unlock()

	close(h.stop)
	h.wg.Wait()

	if h.stream != nil {
		_ = h.stream.Stop()
		_ = h.stream.Close()
	}

	_ = portaudio.Terminate()
}

func (h *HardwareDaqPort) SetOutput(block []float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	copy(h.outBlock, block)
}

func (h *HardwareDaqPort) GetInput() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]float64, len(h.inBlock))
	copy(out, h.inBlock)

	return out
}

func (h *HardwareDaqPort) DataReady() <-chan struct{} { return h.dataReady }

// outputLoop writes the current requested buffer to the device every
// time its on-board memory empties -- stream.Write blocks until
// PortAudio is ready for the next period, giving the same one-period
// back-pressure as the original DAQmx "OnBrdMemEmpty" transfer
// condition.
func (h *HardwareDaqPort) outputLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		h.mu.Lock()
		for i, v := range h.outBlock {
			h.outScratch[i] = float32(v)
		}
		h.mu.Unlock()

		if err := h.stream.Write(); err != nil {
			Log.Error("hardware daq write failed, skipping buffer", "err", err)

			continue
		}
	}
}

// inputLoop reads points frames of channels+1 interleaved samples per
// period. PortAudio delivers Stream.Read's buffer point-major -- every
// frame holds one sample from each of the channels+1 input channels back
// to back -- so the duplicated channel used to cancel a multiplexing
// artifact is dropped per frame, not as a contiguous block at the front
// of the buffer.
func (h *HardwareDaqPort) inputLoop() {
	defer h.wg.Done()

	frameWidth := h.channels + 1

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		if err := h.stream.Read(); err != nil {
			Log.Error("hardware daq read failed, skipping buffer", "err", err)

			continue
		}

		h.mu.Lock()
		for k := 0; k < h.points; k++ {
			frame := h.inScratch[k*frameWidth : k*frameWidth+frameWidth]
			// frame[0] is the duplicated multiplexing-artifact channel.
			for i := 0; i < h.channels; i++ {
				h.inBlock[k*h.channels+i] = float64(frame[i+1])
			}
		}
		h.mu.Unlock()

		select {
		case h.dataReady <- struct{}{}:
		default:
		}
	}
}
