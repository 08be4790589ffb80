package cursor

import "github.com/pkg/errors"

// Precondition errors. Nothing is changed when these are returned.
var (
	ErrCursorNotReady           = errors.New("cursor is not initialized")
	ErrCursorAlreadyInitialized = errors.New("cursor is already initialized")
)

// Validation errors. The offending action is rejected and the cursor state is left untouched.
var (
	ErrPinOutOfRange      = errors.New("pin number out of range")
	ErrPartCannotHeat     = errors.New("robot part cannot be heated")
	ErrTableCollision     = errors.New("move would collide with the table")
	ErrUnknownJoints      = errors.New("joint values are unknown")
	ErrUnknownPose        = errors.New("tcp position or rotation is unknown")
	ErrEmptySettingsStack = errors.New("no settings were pushed")
	ErrNoToolAttached     = errors.New("no tool is attached")
	ErrInvalidValue       = errors.New("invalid value")
)
