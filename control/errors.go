package control

import (
	"github.com/pkg/errors"

	"go.viam.com/machina/config"
)

// ErrCursorsNotInitialized is returned by requests made before the cursors know where the robot
// is: in Execute and Stream mode that is until ConnectToDevice succeeds.
var ErrCursorsNotInitialized = errors.New("robot cursors are not initialized")

// ErrWrongControlMode is returned when a call is not available in the current control mode.
var ErrWrongControlMode = errors.New("not available in this control mode")

// ErrNotStreamed is returned in Stream mode when the virtual cursor accepted an action but it
// could not be sent to the device. The action stays queued and nothing more is streamed until
// ResendStreamQueue succeeds; the transport error is combined with it.
var ErrNotStreamed = errors.New("action accepted but not streamed")

// ErrStreamStalled is returned by requests made while an action is waiting in the stream queue
// after a failed send. The request is rejected without changing any cursor.
var ErrStreamStalled = errors.New("stream stalled on an unsent action, call ResendStreamQueue")

func wrongMode(op string, mode config.ControlMode) error {
	return errors.Wrapf(ErrWrongControlMode, "%s in %s mode", op, mode)
}
