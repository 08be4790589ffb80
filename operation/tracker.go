// Package operation tracks the work a controller runs on behalf of its caller, such as uploading
// a block of actions, and serializes jobs on a device.
package operation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.viam.com/machina/logging"
)

type operationKeyType struct{}

var operationKey = operationKeyType{}

// Operation is a unit of work running inside a controller.
type Operation struct {
	ID      uuid.UUID
	Method  string
	Started time.Time

	cancel context.CancelFunc
}

// Cancel cancels the context of the operation.
func (o *Operation) Cancel() {
	o.cancel()
}

// Tracker holds the running operations of one controller.
type Tracker struct {
	logger logging.Logger

	mu  sync.Mutex
	ops map[uuid.UUID]*Operation
}

// NewTracker returns an empty Tracker.
func NewTracker(logger logging.Logger) *Tracker {
	return &Tracker{logger: logger, ops: map[uuid.UUID]*Operation{}}
}

// Start records a new operation and returns its context along with the func that ends it.
// Operations do not nest: starting one from inside another panics.
func (t *Tracker) Start(ctx context.Context, method string) (context.Context, func()) {
	if ctx.Value(operationKey) != nil {
		panic("operation " + method + " started inside another operation")
	}

	op := &Operation{ID: uuid.New(), Method: method, Started: time.Now()}
	ctx, op.cancel = context.WithCancel(context.WithValue(ctx, operationKey, op))

	t.mu.Lock()
	t.ops[op.ID] = op
	t.mu.Unlock()
	t.logger.Debugw("operation started", "id", op.ID.String(), "method", method)

	return ctx, func() {
		op.cancel()
		t.mu.Lock()
		delete(t.ops, op.ID)
		t.mu.Unlock()
		t.logger.Debugw("operation finished", "id", op.ID.String(), "method", method, "took", time.Since(op.Started))
	}
}

// Running returns the running operations, oldest first.
func (t *Tracker) Running() []*Operation {
	t.mu.Lock()
	ops := make([]*Operation, 0, len(t.ops))
	for _, op := range t.ops {
		ops = append(ops, op)
	}
	t.mu.Unlock()

	sort.Slice(ops, func(i, j int) bool { return ops[i].Started.Before(ops[j].Started) })
	return ops
}

// CancelAll cancels every running operation.
func (t *Tracker) CancelAll() {
	for _, op := range t.Running() {
		op.Cancel()
	}
}

// FromContext returns the operation ctx belongs to, or nil.
func FromContext(ctx context.Context) *Operation {
	op, _ := ctx.Value(operationKey).(*Operation)
	return op
}
