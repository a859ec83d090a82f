package lockin

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

/*------------------------------------------------------------------
 *
 * Purpose:	A DaqPort implementation that requires no hardware: a
 *		timer stands in for the acquisition clock and a randomized
 *		resistor-network transfer matrix stands in for the device
 *		under test.
 *
 * Description:	Keeps the same interface as the hardware backend so it is
 *		a drop-in for offline development.
 *
 *------------------------------------------------------------------*/

// SimulationDaqPort emulates a DAQ card by running the last requested
// output block through a static resistor-network transfer matrix, adding
// noise and a small per-channel phase lag, every period.
type SimulationDaqPort struct {
	channels int
	points   int
	freq     float64

	tmat  *TransferMatrixModel
	rolls []int
	rng   *rand.Rand

	mu       sync.Mutex
	outBlock []float64
	inBlock  []float64

	dataReady chan struct{}
	stop      chan struct{}
	wg        sync.WaitGroup
	running   bool
}

// NewSimulationDaqPort builds a simulation backend over a random
// resistor network built the same way the original dummy DAQ builds it
// (100 ohm bias resistors, matrix scaled by 0.01 before it is inverted).
// If that matrix is singular, a ring network is used instead.
func NewSimulationDaqPort(channels, points int, seed int64) *SimulationDaqPort {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // simulation only, not cryptographic

	tmat := NewRandomConductanceMatrix(channels, rng)
	tmat.BiasResistorMod(100)
	tmat.Scale(0.01)

	if err := tmat.Invert(); err != nil {
		Log.Warn("simulation transfer matrix was singular, using ring network instead", "err", err)
		tmat = NewRingTransferMatrix(channels)
	}

	maxRoll := points / 100
	if maxRoll < 1 {
		maxRoll = 1
	}

	rolls := make([]int, channels)
	for i := range rolls {
		rolls[i] = rng.Intn(2*maxRoll+1) - maxRoll
	}

	return &SimulationDaqPort{
		channels:  channels,
		points:    points,
		tmat:      tmat,
		rolls:     rolls,
		rng:       rng,
		outBlock:  make([]float64, points*channels),
		inBlock:   make([]float64, points*channels),
		dataReady: make(chan struct{}, 1),
	}
}

func (s *SimulationDaqPort) SetChannels(inputSpec, outputSpec []string) {}

func (s *SimulationDaqPort) SetClocks(outputClockSrc, outputClockChan, inputClockChan string) {}

func (s *SimulationDaqPort) SetFrequency(hz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.freq = hz
}

func (s *SimulationDaqPort) Init() error { return nil }

func (s *SimulationDaqPort) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()

		return nil
	}

	s.running = true
	freq := s.freq
	s.mu.Unlock()

	if freq <= 0 {
		return &DaqError{Op: "start", Err: errInvalidFrequency}
	}

	s.stop = make(chan struct{})

	period := time.Duration(float64(s.points) / freq * float64(time.Second))

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()

	return nil
}

func (s *SimulationDaqPort) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()

		return
	}

	s.running = false
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
}

func (s *SimulationDaqPort) SetOutput(block []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.outBlock, block)
}

func (s *SimulationDaqPort) GetInput() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, len(s.inBlock))
	copy(out, s.inBlock)

	return out
}

func (s *SimulationDaqPort) DataReady() <-chan struct{} { return s.dataReady }

// tick runs the transfer-matrix model once per simulated acquisition
// period: each time-point's output voltage vector is passed through the
// static resistor network independently, noise is added, and each
// channel is cyclically shifted in time to emulate a small phase lag.
func (s *SimulationDaqPort) tick() {
	s.mu.Lock()
	out := make([]float64, len(s.outBlock))
	copy(out, s.outBlock)
	s.mu.Unlock()

	channelMajor := make([][]float64, s.channels)
	for i := range channelMajor {
		channelMajor[i] = make([]float64, s.points)
	}

	colBuf := make([]float64, s.channels)

	for k := 0; k < s.points; k++ {
		for i := 0; i < s.channels; i++ {
			colBuf[i] = out[k*s.channels+i]
		}

		xfer := s.tmat.Xfer(colBuf)

		for i := 0; i < s.channels; i++ {
			channelMajor[i][k] = xfer[i] + s.rng.NormFloat64()*0.02
		}
	}

	for i := 0; i < s.channels; i++ {
		channelMajor[i] = rollFloat64(channelMajor[i], s.rolls[i])
	}

	result := make([]float64, s.points*s.channels)

	for k := 0; k < s.points; k++ {
		for i := 0; i < s.channels; i++ {
			result[k*s.channels+i] = clip(channelMajor[i][k], -10, 10)
		}
	}

	s.mu.Lock()
	copy(s.inBlock, result)
	s.mu.Unlock()

	select {
	case s.dataReady <- struct{}{}:
	default:
		// engine hasn't consumed the previous notification yet; the
		// newest buffer is already in place, so dropping this
		// notification is exactly the intended "most recent wins"
		// coalescing.
	}
}

// rollFloat64 returns v cyclically shifted by n (positive shifts right).
func rollFloat64(v []float64, n int) []float64 {
	l := len(v)
	if l == 0 {
		return v
	}

	n = ((n % l) + l) % l
	if n == 0 {
		return v
	}

	out := make([]float64, l)
	copy(out, v[l-n:])
	copy(out[n:], v[:l-n])

	return out
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

var errInvalidFrequency = &ConfigError{Key: "FBL/frequency", Msg: "must be positive before starting the DAQ"}
