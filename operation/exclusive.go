package operation

import (
	"context"
	"sync"
	"time"

	"go.viam.com/utils"
)

type exclusiveKeyType struct{}

var exclusiveKey = exclusiveKeyType{}

// Exclusive lets one job own a device at a time. Beginning a job preempts the one before it,
// except when the new job is started from inside the running one: then it joins its parent.
// The zero value is ready to use.
type Exclusive struct {
	mu  sync.Mutex
	job *job
}

type job struct {
	cancel context.CancelFunc
}

// Begin starts a job and returns its context along with the func that ends it.
func (e *Exclusive) Begin(ctx context.Context) (context.Context, func()) {
	if ctx.Value(exclusiveKey) != nil {
		return ctx, func() {}
	}

	e.mu.Lock()
	e.preemptLocked(ctx)
	j := &job{}
	jobCtx, cancel := context.WithCancel(context.WithValue(ctx, exclusiveKey, j))
	j.cancel = cancel
	e.job = j
	e.mu.Unlock()

	return jobCtx, func() {
		cancel()
		e.mu.Lock()
		if e.job == j {
			e.job = nil
		}
		e.mu.Unlock()
	}
}

// Preempt cancels the running job, unless ctx belongs to it.
func (e *Exclusive) Preempt(ctx context.Context) {
	if ctx.Value(exclusiveKey) != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preemptLocked(ctx)
}

// Busy reports whether a job is running.
func (e *Exclusive) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job != nil
}

// Sleep runs a job that waits for dur. It returns false when the job was preempted or ctx
// ended first.
func (e *Exclusive) Sleep(ctx context.Context, dur time.Duration) bool {
	ctx, end := e.Begin(ctx)
	defer end()
	return utils.SelectContextOrWait(ctx, dur)
}

// PollUntil runs a job that calls done every interval until it reports true or fails.
func (e *Exclusive) PollUntil(
	ctx context.Context,
	interval time.Duration,
	done func(ctx context.Context) (bool, error),
) error {
	ctx, end := e.Begin(ctx)
	defer end()

	for {
		ok, err := done(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !utils.SelectContextOrWait(ctx, interval) {
			return ctx.Err()
		}
	}
}

func (e *Exclusive) preemptLocked(ctx context.Context) {
	if e.job == nil || ctx.Value(exclusiveKey) == e.job {
		return
	}
	e.job.cancel()
	e.job = nil
}
