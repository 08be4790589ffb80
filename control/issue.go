package control

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/machina/action"
	"go.viam.com/machina/config"
	"go.viam.com/machina/cursor"
	"go.viam.com/machina/driver"
	"go.viam.com/machina/spatialmath"
)

// IssueApplyActionRequest issues an already built action. All other Issue methods build their
// action and go through here: the virtual cursor validates and applies it, and in Stream mode it
// is streamed to the device right away. A send failure returns ErrNotStreamed: the action was
// accepted, and it is only sent again by ResendStreamQueue.
func (c *Control) IssueApplyActionRequest(act action.Action) error {
	if act == nil {
		return errors.Wrap(cursor.ErrInvalidValue, "nil action")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.cursorsInitialized {
		return ErrCursorsNotInitialized
	}
	streaming := c.controlMode == config.Stream
	if streaming {
		if c.drv == nil {
			return driver.ErrNotConnected
		}
		if err := c.streamErr.Load(); err != nil {
			return multierr.Combine(ErrStreamStalled, err)
		}
	}
	if err := c.virtualCursor.Issue(act); err != nil {
		return err
	}
	if !streaming {
		return nil
	}
	return c.flushStreamLocked(c.cancelCtx)
}

// ResendStreamQueue sends the actions left queued by a failed stream send, and lets requests
// through again once they are all sent.
func (c *Control) ResendStreamQueue(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.controlMode != config.Stream {
		return wrongMode("resend stream queue", c.controlMode)
	}
	if c.drv == nil {
		return driver.ErrNotConnected
	}
	if err := c.flushStreamLocked(ctx); err != nil {
		return err
	}
	c.logger.CInfof(ctx, "stream queue resent")
	return nil
}

// flushStreamLocked drains the write cursor to the device and records what the device took on
// the motion cursor. On failure the stream stalls until the next successful flush.
func (c *Control) flushStreamLocked(ctx context.Context) error {
	if err := c.drv.TickStreamQueue(ctx, true); err != nil {
		c.streamErr.Store(err)
		c.logger.Warnw("stream stalled", "error", err)
		c.motionCursor.ApplyPending()
		return multierr.Combine(ErrNotStreamed, err)
	}
	c.streamErr.Store(nil)
	c.motionCursor.ApplyPending()
	return nil
}

// IssueSpeedRequest sets the TCP speed in mm/s, or changes it when relative.
func (c *Control) IssueSpeedRequest(speed float64, relative bool) error {
	return c.IssueApplyActionRequest(action.NewSpeed(speed, relative))
}

// IssuePrecisionRequest sets the blend radius in mm, or changes it when relative.
func (c *Control) IssuePrecisionRequest(precision float64, relative bool) error {
	return c.IssueApplyActionRequest(action.NewPrecision(precision, relative))
}

// IssueMotionRequest sets how the TCP moves between targets.
func (c *Control) IssueMotionRequest(motionType action.MotionType) error {
	return c.IssueApplyActionRequest(action.NewMotionMode(motionType))
}

// IssueReferenceCSRequest sets the frame relative moves are expressed in.
func (c *Control) IssueReferenceCSRequest(cs action.ReferenceCS) error {
	return c.IssueApplyActionRequest(action.NewReferenceFrame(cs))
}

// IssuePushSettingsRequest saves the current settings.
func (c *Control) IssuePushSettingsRequest() error {
	return c.IssueApplyActionRequest(action.NewPushSettings())
}

// IssuePopSettingsRequest restores the last saved settings.
func (c *Control) IssuePopSettingsRequest() error {
	return c.IssueApplyActionRequest(action.NewPopSettings())
}

// IssueTemperatureRequest sets the temperature of a robot part in °C.
func (c *Control) IssueTemperatureRequest(temp float64, part action.RobotPart, waitToReach, relative bool) error {
	if !part.SupportsHeating() {
		return errors.Wrap(cursor.ErrPartCannotHeat, part.String())
	}
	return c.IssueApplyActionRequest(action.NewTemperature(temp, part, waitToReach, relative))
}

// IssueExtrudeRequest turns extrusion on or off.
func (c *Control) IssueExtrudeRequest(on bool) error {
	return c.IssueApplyActionRequest(action.NewExtrudeToggle(on))
}

// IssueExtrusionRateRequest sets the extruded length per mm of travel.
func (c *Control) IssueExtrusionRateRequest(rate float64, relative bool) error {
	return c.IssueApplyActionRequest(action.NewExtrusionRate(rate, relative))
}

// IssueTranslationRequest moves the TCP to a position, or by an offset when relative.
func (c *Control) IssueTranslationRequest(v r3.Vector, relative bool) error {
	return c.IssueApplyActionRequest(action.NewTranslate(v, relative))
}

// IssueRotationRequest rotates the TCP to an orientation, or by a rotation when relative.
func (c *Control) IssueRotationRequest(rot spatialmath.Rotation, relative bool) error {
	return c.IssueApplyActionRequest(action.NewRotate(rot, relative))
}

// IssueTransformationRequest translates and rotates the TCP in one move.
func (c *Control) IssueTransformationRequest(v r3.Vector, rot spatialmath.Rotation, relative, translationFirst bool) error {
	return c.IssueApplyActionRequest(action.NewTranslateAndRotate(v, rot, relative, translationFirst))
}

// IssueJointsRequest sets the joint angles in degrees, or changes them when relative.
func (c *Control) IssueJointsRequest(joints spatialmath.Joints, relative bool) error {
	return c.IssueApplyActionRequest(action.NewSetJoints(joints, relative))
}

// IssueMessageRequest displays a message on the device.
func (c *Control) IssueMessageRequest(message string) error {
	return c.IssueApplyActionRequest(action.NewMessage(message))
}

// IssueWaitRequest pauses for millis milliseconds.
func (c *Control) IssueWaitRequest(millis int64) error {
	return c.IssueApplyActionRequest(action.NewWait(millis))
}

// IssueCommentRequest adds a comment to the program.
func (c *Control) IssueCommentRequest(comment string) error {
	return c.IssueApplyActionRequest(action.NewComment(comment))
}

// IssueAttachRequest attaches a tool to the flange.
func (c *Control) IssueAttachRequest(tool action.Tool) error {
	return c.IssueApplyActionRequest(action.NewAttachTool(tool))
}

// IssueDetachRequest detaches the current tool.
func (c *Control) IssueDetachRequest() error {
	return c.IssueApplyActionRequest(action.NewDetachTool())
}

// IssueWriteToDigitalIORequest turns a digital output on or off.
func (c *Control) IssueWriteToDigitalIORequest(pin int, on bool) error {
	return c.IssueApplyActionRequest(action.NewDigitalWrite(pin, on))
}

// IssueWriteToAnalogIORequest sets an analog output.
func (c *Control) IssueWriteToAnalogIORequest(pin int, value float64) error {
	return c.IssueApplyActionRequest(action.NewAnalogWrite(pin, value))
}

// IssueInitializationRequest initializes the device, or terminates it when initialize is false.
func (c *Control) IssueInitializationRequest(initialize bool) error {
	return c.IssueApplyActionRequest(action.NewInitializeDevice(initialize))
}

// virtualState is the state of the virtual cursor, that is the state after every accepted
// request.
func (c *Control) virtualState() (cursor.State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.cursorsInitialized {
		return cursor.State{}, ErrCursorsNotInitialized
	}
	return c.virtualCursor.Snapshot(), nil
}

// streamingDevice returns the driver when pose queries go to the device, nil otherwise.
func (c *Control) streamingDevice() driver.Driver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.controlMode != config.Stream || c.drv == nil || !c.drv.IsConnected() {
		return nil
	}
	return c.drv
}

// CurrentPosition returns the TCP position in mm. In Stream mode the device is asked.
func (c *Control) CurrentPosition(ctx context.Context) (r3.Vector, error) {
	if drv := c.streamingDevice(); drv != nil {
		return drv.CurrentPosition(ctx)
	}
	s, err := c.virtualState()
	if err != nil {
		return r3.Vector{}, err
	}
	if s.Position == nil {
		return r3.Vector{}, cursor.ErrUnknownPose
	}
	return *s.Position, nil
}

// CurrentRotation returns the TCP rotation. In Stream mode the device is asked.
func (c *Control) CurrentRotation(ctx context.Context) (spatialmath.Rotation, error) {
	if drv := c.streamingDevice(); drv != nil {
		return drv.CurrentRotation(ctx)
	}
	s, err := c.virtualState()
	if err != nil {
		return spatialmath.Rotation{}, err
	}
	if s.Rotation == nil {
		return spatialmath.Rotation{}, cursor.ErrUnknownPose
	}
	return *s.Rotation, nil
}

// CurrentJoints returns the joint angles in degrees. In Stream mode the device is asked.
func (c *Control) CurrentJoints(ctx context.Context) (spatialmath.Joints, error) {
	if drv := c.streamingDevice(); drv != nil {
		return drv.CurrentJoints(ctx)
	}
	s, err := c.virtualState()
	if err != nil {
		return spatialmath.Joints{}, err
	}
	if s.Joints == nil {
		return spatialmath.Joints{}, cursor.ErrUnknownJoints
	}
	return *s.Joints, nil
}

// CurrentTool returns the attached tool, or nil.
func (c *Control) CurrentTool() (*action.Tool, error) {
	s, err := c.virtualState()
	if err != nil {
		return nil, err
	}
	return s.Tool, nil
}

// CurrentSpeed returns the TCP speed in mm/s.
func (c *Control) CurrentSpeed() (float64, error) {
	s, err := c.virtualState()
	return s.Speed, err
}

// CurrentPrecision returns the blend radius in mm.
func (c *Control) CurrentPrecision() (float64, error) {
	s, err := c.virtualState()
	return s.Precision, err
}

// CurrentMotionType returns how the TCP moves between targets.
func (c *Control) CurrentMotionType() (action.MotionType, error) {
	s, err := c.virtualState()
	return s.MotionType, err
}

// CurrentReferenceCS returns the frame relative moves are expressed in.
func (c *Control) CurrentReferenceCS() (action.ReferenceCS, error) {
	s, err := c.virtualState()
	return s.ReferenceCS, err
}

// splitProgramPath splits "dir/name.ext" for LoadFileToController.
func splitProgramPath(path string) (dir, name, ext string) {
	dir, file := filepath.Split(path)
	ext = filepath.Ext(file)
	name = strings.TrimSuffix(file, ext)
	return filepath.Clean(dir), name, strings.TrimPrefix(ext, ".")
}
