package lockin

/*------------------------------------------------------------------
 *
 * Purpose:	Wire a DaqPort's acquisition notifications to the engine's
 *		step loop and back out to the DaqPort's output buffer.
 *
 * Description:	Three-domain concurrency: the DaqPort's own goroutines
 *		own sampling, this loop is the single engine-step domain
 *		(one step at a time, "most recent wins" against a slow
 *		consumer), and the ControlPlane is drained between steps,
 *		never during one. A run-to-completion, channel-signaled
 *		worker loop over a single input/output buffer pair.
 *
 *------------------------------------------------------------------*/

import "context"

// RunLoop owns the single goroutine that steps a FeedbackEngine once per
// DaqPort-reported buffer, applying queued ControlPlane mutations between
// steps.
type RunLoop struct {
	daq    DaqPort
	engine *FeedbackEngine
	cp     *ControlPlane
}

// NewRunLoop binds a DaqPort, the engine it feeds, and the control plane
// that mutates it.
func NewRunLoop(daq DaqPort, engine *FeedbackEngine, cp *ControlPlane) *RunLoop {
	return &RunLoop{daq: daq, engine: engine, cp: cp}
}

// Run blocks until ctx is done or the DaqPort's DataReady channel closes,
// driving one engine Step per acquired buffer and writing the rendered
// sine output back to the DaqPort immediately after.
func (r *RunLoop) Run(ctx context.Context) {
	ready := r.daq.DataReady()

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-ready:
			if !ok {
				return
			}

			r.cp.drain()

			in := r.daq.GetInput()
			r.engine.Step(in)
			r.daq.SetOutput(r.engine.SineOut())
		}
	}
}
