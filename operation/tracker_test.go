package operation

import (
	"context"
	"testing"

	"go.viam.com/test"

	"go.viam.com/machina/logging"
)

func TestTracker(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(logging.NewTestLogger(t))
	test.That(t, FromContext(ctx), test.ShouldBeNil)
	test.That(t, tracker.Running(), test.ShouldBeEmpty)

	blockCtx, end := tracker.Start(ctx, "execute_block")
	op := FromContext(blockCtx)
	test.That(t, op, test.ShouldNotBeNil)
	test.That(t, op.Method, test.ShouldEqual, "execute_block")
	test.That(t, func() { tracker.Start(blockCtx, "nested") }, test.ShouldPanic)

	streamCtx, endStream := tracker.Start(ctx, "stream")
	running := tracker.Running()
	test.That(t, len(running), test.ShouldEqual, 2)
	test.That(t, running[0].ID, test.ShouldEqual, op.ID)
	test.That(t, running[1].Method, test.ShouldEqual, "stream")

	end()
	test.That(t, blockCtx.Err(), test.ShouldNotBeNil)
	test.That(t, len(tracker.Running()), test.ShouldEqual, 1)

	tracker.CancelAll()
	test.That(t, streamCtx.Err(), test.ShouldNotBeNil)
	endStream()
	test.That(t, tracker.Running(), test.ShouldBeEmpty)
}
