package lockin

import "sync"

/*------------------------------------------------------------------
 *
 * Purpose:	Serialize setpoint / amplitude / gain / enable /
 *		averaging / reference mutation requests from the GUI or
 *		TCP layer into the engine's single-threaded step loop.
 *
 * Description:	Requests queue up as closures and are drained by the
 *		engine's run loop between (never during) steps. Readers
 *		never touch engine state directly; they call Snapshot,
 *		which returns the immutable struct the engine published
 *		after its most recent step.
 *
 *------------------------------------------------------------------*/

// mutation is one queued control-plane request.
type mutation func(e *FeedbackEngine)

// ControlPlane is the non-real-time ingress point for engine mutation.
// It is safe to call its methods from any number of goroutines (GUI
// callbacks, TCP connection handlers); the actual mutation happens on
// the engine's own goroutine between steps.
type ControlPlane struct {
	engine *FeedbackEngine

	mu      sync.Mutex
	pending []mutation
}

// NewControlPlane builds a ControlPlane bound to the given engine.
func NewControlPlane(engine *FeedbackEngine) *ControlPlane {
	return &ControlPlane{engine: engine}
}

func (c *ControlPlane) enqueue(m mutation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, m)
}

// drain applies every queued mutation and clears the queue. Must only be
// called from the engine's own goroutine, between steps.
func (c *ControlPlane) drain() {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, m := range batch {
		m(c.engine)
	}
}

// SetSetpoint sets channel i's target X value.
func (c *ControlPlane) SetSetpoint(i int, v float64) {
	c.enqueue(func(e *FeedbackEngine) { e.SetSetpoint(i, v) })
}

// SetAmp requests an explicit output amplitude for channel i. It only
// takes effect if the channel's feedback is currently disabled.
func (c *ControlPlane) SetAmp(i int, v float64) {
	c.enqueue(func(e *FeedbackEngine) { e.SetAmp(i, v) })
}

// SetFeedback enables or disables PI feedback on channel i.
func (c *ControlPlane) SetFeedback(i int, on bool) {
	c.enqueue(func(e *FeedbackEngine) { e.SetFeedbackEnabled(i, on) })
}

// SetKi sets the shared integral gain.
func (c *ControlPlane) SetKi(v float64) {
	c.enqueue(func(e *FeedbackEngine) { e.pi.SetKi(v) })
}

// SetKp sets the shared proportional gain.
func (c *ControlPlane) SetKp(v float64) {
	c.enqueue(func(e *FeedbackEngine) { e.pi.SetKp(v) })
}

// SetReference selects the virtual-ground reference channel, or -1 for
// none.
func (c *ControlPlane) SetReference(ch int) {
	c.enqueue(func(e *FeedbackEngine) { e.pi.SetReference(ch) })
}

// SetAveraging reconfigures both the amplitude and series averagers.
func (c *ControlPlane) SetAveraging(mode AvgMode, amount float64) {
	c.enqueue(func(e *FeedbackEngine) { e.SetAveraging(mode, amount) })
}

// ResetAveraging clears both averagers' accumulated history.
func (c *ControlPlane) ResetAveraging() {
	c.enqueue(func(e *FeedbackEngine) { e.ResetAveraging() })
}

// Autotune requests one autotune_pid call with the given scale factor.
func (c *ControlPlane) Autotune(scale float64) {
	c.enqueue(func(e *FeedbackEngine) { _, _ = e.AutotunePID(scale) })
}

// Snapshot returns the engine's most recently published state. Safe to
// call from any goroutine at any time.
func (c *ControlPlane) Snapshot() *Snapshot {
	return c.engine.Snapshot()
}
