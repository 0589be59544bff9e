package report

import (
	"context"
	"sync"
)

// Recomputer serialises computations for one view. Starting a new run
// cancels the one in flight; the cancelled caller gets ErrSuperseded.
type Recomputer struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Run executes fn with a context that is cancelled if another Run starts
// before fn returns.
func (r *Recomputer) Run(ctx context.Context, fn func(context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	mine := r.seq
	r.cancel = cancel
	r.mu.Unlock()

	err := fn(runCtx)

	r.mu.Lock()
	superseded := r.seq != mine
	if !superseded {
		r.cancel = nil
	}
	r.mu.Unlock()

	if superseded {
		return ErrSuperseded
	}
	return err
}

// Cancel aborts the run in flight, if any. Its caller gets ErrSuperseded.
func (r *Recomputer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
