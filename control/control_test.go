package control

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/machina/action"
	"go.viam.com/machina/config"
	"go.viam.com/machina/cursor"
	"go.viam.com/machina/driver"
	"go.viam.com/machina/driver/fake"
	"go.viam.com/machina/logging"
	"go.viam.com/machina/spatialmath"
)

func newControl(t *testing.T, logger logging.Logger, mode config.ControlMode, attrs config.AttributeMap) *Control {
	t.Helper()
	conf := config.Default()
	conf.ControlMode = mode
	conf.Driver = attrs
	c, err := New(conf, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, c.Close(context.Background()), test.ShouldBeNil)
	})
	return c
}

func fakeDriver(t *testing.T, c *Control) *fake.Driver {
	t.Helper()
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.drv.(*fake.Driver)
	test.That(t, ok, test.ShouldBeTrue)
	return d
}

func TestOfflineExport(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Offline, nil)
	test.That(t, c.ControlMode(), test.ShouldEqual, config.Offline)

	pos, err := c.CurrentPosition(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldResemble, r3.Vector{})
	rot, err := c.CurrentRotation(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rot.IsEquivalent(spatialmath.FlippedAroundY), test.ShouldBeTrue)
	_, err = c.CurrentJoints(context.Background())
	test.That(t, errors.Is(err, cursor.ErrUnknownJoints), test.ShouldBeTrue)

	test.That(t, c.IssueSpeedRequest(50, false), test.ShouldBeNil)
	test.That(t, c.IssueTranslationRequest(r3.Vector{Z: 100}, false), test.ShouldBeNil)
	test.That(t, c.IssueWaitRequest(500), test.ShouldBeNil)

	lines, err := c.Export(true, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lines, test.ShouldResemble, []string{
		"Set speed to 50 mm/s",
		"Move to [0, 0, 100] mm",
		"Wait 500 ms",
	})

	t.Run("export consumes the buffer", func(t *testing.T) {
		lines, err := c.Export(true, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, lines, test.ShouldBeEmpty)
	})

	t.Run("export in stream mode fails", func(t *testing.T) {
		test.That(t, c.SetControlMode(context.Background(), config.Stream), test.ShouldBeNil)
		_, err := c.Export(true, false)
		test.That(t, errors.Is(err, ErrWrongControlMode), test.ShouldBeTrue)
	})
}

func TestExportToFile(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Offline, nil)
	test.That(t, c.IssueCommentRequest("héllo"), test.ShouldBeNil)
	test.That(t, c.IssueMessageRequest("done"), test.ShouldBeNil)

	path := filepath.Join(t.TempDir(), "program.txt")
	test.That(t, c.ExportToFile(path, true, false), test.ShouldBeNil)
	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "héllo")
	test.That(t, string(data), test.ShouldContainSubstring, "done")
}

func TestTableGuard(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Offline, nil)

	err := c.IssueTranslationRequest(r3.Vector{Z: config.DefaultTableZLimit - 1}, false)
	test.That(t, errors.Is(err, cursor.ErrTableCollision), test.ShouldBeTrue)

	pos, err := c.CurrentPosition(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldResemble, r3.Vector{})
	for _, cur := range []*cursor.RobotCursor{c.virtualCursor, c.writeCursor, c.motionCursor} {
		test.That(t, cur.Committed(), test.ShouldBeEmpty)
		test.That(t, cur.Snapshot().Position, test.ShouldResemble, &r3.Vector{})
	}

	test.That(t, c.IssueTranslationRequest(r3.Vector{Z: config.DefaultTableZLimit}, false), test.ShouldBeNil)
}

func TestRotateScenario(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Offline, nil)
	origin := r3.Vector{}
	identity := spatialmath.IdentityRotation
	test.That(t, c.InitializeRobotCursors(&origin, &identity, nil), test.ShouldBeNil)

	test.That(t, c.IssueTranslationRequest(r3.Vector{Z: 100}, false), test.ShouldBeNil)
	pos, err := c.CurrentPosition(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldResemble, r3.Vector{Z: 100})

	cs, err := c.CurrentReferenceCS()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cs, test.ShouldEqual, action.World)
	rot90 := spatialmath.NewRotationFromAxisAngle(r3.Vector{Z: 1}, 90)
	test.That(t, c.IssueRotationRequest(rot90, true), test.ShouldBeNil)

	rot, err := c.CurrentRotation(context.Background())
	test.That(t, err, test.ShouldBeNil)
	ea := rot.EulerAngles()
	test.That(t, ea.Yaw, test.ShouldAlmostEqual, 90, 1e-6)
	test.That(t, ea.Pitch, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, ea.Roll, test.ShouldAlmostEqual, 0, 1e-6)

	pos, err = c.CurrentPosition(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldResemble, r3.Vector{Z: 100})
}

func TestSettingsGetters(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Offline, nil)

	speed, err := c.CurrentSpeed()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, speed, test.ShouldEqual, config.DefaultSpeed)
	precision, err := c.CurrentPrecision()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, precision, test.ShouldEqual, config.DefaultPrecision)

	test.That(t, c.IssuePushSettingsRequest(), test.ShouldBeNil)
	test.That(t, c.IssueSpeedRequest(10, true), test.ShouldBeNil)
	test.That(t, c.IssuePrecisionRequest(1, false), test.ShouldBeNil)
	test.That(t, c.IssueMotionRequest(action.Joint), test.ShouldBeNil)
	test.That(t, c.IssueReferenceCSRequest(action.Local), test.ShouldBeNil)

	speed, _ = c.CurrentSpeed()
	test.That(t, speed, test.ShouldEqual, 30.0)
	mt, _ := c.CurrentMotionType()
	test.That(t, mt, test.ShouldEqual, action.Joint)
	cs, _ := c.CurrentReferenceCS()
	test.That(t, cs, test.ShouldEqual, action.Local)

	test.That(t, c.IssuePopSettingsRequest(), test.ShouldBeNil)
	speed, _ = c.CurrentSpeed()
	test.That(t, speed, test.ShouldEqual, config.DefaultSpeed)
	mt, _ = c.CurrentMotionType()
	test.That(t, mt, test.ShouldEqual, action.Linear)

	err = c.IssuePopSettingsRequest()
	test.That(t, errors.Is(err, cursor.ErrEmptySettingsStack), test.ShouldBeTrue)

	tool, err := c.CurrentTool()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tool, test.ShouldBeNil)
	gripper, err := action.NewTool("gripper", r3.Vector{Z: 50}, spatialmath.IdentityRotation, 1.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.IssueAttachRequest(gripper), test.ShouldBeNil)
	tool, err = c.CurrentTool()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tool.Name, test.ShouldEqual, "gripper")
	test.That(t, c.IssueDetachRequest(), test.ShouldBeNil)
	tool, _ = c.CurrentTool()
	test.That(t, tool, test.ShouldBeNil)
}

func TestIOAndTemperature(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Offline, nil)

	test.That(t, c.IssueWriteToDigitalIORequest(1, true), test.ShouldBeNil)
	test.That(t, c.IssueWriteToAnalogIORequest(0, 0.5), test.ShouldBeNil)
	err := c.IssueWriteToDigitalIORequest(config.DefaultDigitalIO, true)
	test.That(t, errors.Is(err, cursor.ErrPinOutOfRange), test.ShouldBeTrue)

	err = c.SetIOName("gripper", config.DefaultDigitalIO, true)
	test.That(t, errors.Is(err, cursor.ErrPinOutOfRange), test.ShouldBeTrue)
	test.That(t, c.SetIOName("gripper", 1, true), test.ShouldBeNil)
	test.That(t, c.virtualCursor.Snapshot().DigitalNames[1], test.ShouldEqual, "gripper")
	test.That(t, c.writeCursor.Snapshot().DigitalNames[1], test.ShouldEqual, "gripper")

	err = c.IssueTemperatureRequest(60, action.Chamber, false, false)
	test.That(t, errors.Is(err, cursor.ErrPartCannotHeat), test.ShouldBeTrue)
	test.That(t, c.IssueTemperatureRequest(200, action.Extruder, true, false), test.ShouldBeNil)
	test.That(t, c.virtualCursor.Snapshot().Temperatures[action.Extruder], test.ShouldEqual, 200.0)

	test.That(t, c.IssueApplyActionRequest(nil), test.ShouldNotBeNil)
	test.That(t, c.IssueApplyActionRequest(action.NewExtrusionRate(0.2, false)), test.ShouldBeNil)
	test.That(t, c.IssueExtrudeRequest(true), test.ShouldBeNil)
	test.That(t, c.virtualCursor.Snapshot().Extruding, test.ShouldBeTrue)
	test.That(t, c.IssueInitializationRequest(true), test.ShouldBeNil)
	test.That(t, c.virtualCursor.Snapshot().DeviceInitialized, test.ShouldBeTrue)
}

func TestOfflineDeviceCalls(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	c := newControl(t, logger, config.Offline, nil)
	ctx := context.Background()

	for _, err := range []error{
		c.ConnectToDevice(ctx, ""),
		c.DisconnectFromDevice(ctx),
		c.LoadProgramToDevice(ctx, []string{"a"}),
		c.LoadFileToDevice(ctx, "program.script"),
		c.StartProgramOnDevice(ctx),
		c.StopProgramOnDevice(ctx, true),
		c.Execute(),
	} {
		test.That(t, errors.Is(err, ErrWrongControlMode), test.ShouldBeTrue)
	}
	test.That(t, c.IsConnectedToDevice(), test.ShouldBeFalse)
	_, err := c.ControllerIP()
	test.That(t, errors.Is(err, ErrWrongControlMode), test.ShouldBeTrue)

	test.That(t, c.SetRunMode(config.Loop), test.ShouldBeNil)
	test.That(t, c.RunMode(), test.ShouldEqual, config.Loop)
	test.That(t, logs.FilterMessage("run mode has no effect in offline mode").Len(), test.ShouldEqual, 1)
	test.That(t, c.SetRunMode("forever"), test.ShouldNotBeNil)
	test.That(t, c.SetControlMode(ctx, "manual"), test.ShouldNotBeNil)
}

func TestNotInitializedUntilConnected(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Execute, nil)

	err := c.IssueSpeedRequest(10, false)
	test.That(t, errors.Is(err, ErrCursorsNotInitialized), test.ShouldBeTrue)
	_, err = c.CurrentSpeed()
	test.That(t, errors.Is(err, ErrCursorsNotInitialized), test.ShouldBeTrue)
	test.That(t, errors.Is(c.Execute(), ErrCursorsNotInitialized), test.ShouldBeTrue)
	_, err = c.Export(true, false)
	test.That(t, errors.Is(err, ErrWrongControlMode), test.ShouldBeTrue)

	_, err = c.ControllerIP()
	test.That(t, errors.Is(err, driver.ErrNotConnected), test.ShouldBeTrue)
}

func TestExecute(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Execute, config.AttributeMap{
		"position": []float64{300, 0, 500},
	})
	ctx := context.Background()

	test.That(t, c.ConnectToDevice(ctx, ""), test.ShouldBeNil)
	test.That(t, c.IsConnectedToDevice(), test.ShouldBeTrue)
	ip, err := c.ControllerIP()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ip, test.ShouldEqual, fake.IP)
	pos, err := c.CurrentPosition(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldResemble, r3.Vector{X: 300, Y: 0, Z: 500})

	dev := fakeDriver(t, c)

	test.That(t, c.IssueTranslationRequest(r3.Vector{X: 300, Z: 400}, false), test.ShouldBeNil)
	// nothing runs until Execute freezes a block
	test.That(t, c.writeCursor.BlockPending(), test.ShouldBeFalse)
	c.TickWriteCursor()
	test.That(t, dev.Programs(), test.ShouldBeEmpty)

	test.That(t, c.Execute(), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, dev.Runs(), test.ShouldEqual, 1)
	})
	test.That(t, dev.Programs()[0], test.ShouldResemble, []string{"Move to [300, 0, 400] mm"})
	test.That(t, dev.IsRunning(), test.ShouldBeTrue)

	// the second block waits for the first program to complete
	test.That(t, c.IssueWaitRequest(250), test.ShouldBeNil)
	test.That(t, c.Execute(), test.ShouldBeNil)
	test.That(t, c.writeCursor.BlockPending(), test.ShouldBeTrue)
	test.That(t, len(dev.Programs()), test.ShouldEqual, 1)
	test.That(t, c.motionCursor.Released(), test.ShouldBeEmpty)

	dev.FinishProgram()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, dev.Runs(), test.ShouldEqual, 2)
	})
	test.That(t, dev.Programs()[1], test.ShouldResemble, []string{"Wait 250 ms"})
	test.That(t, len(c.motionCursor.Released()), test.ShouldEqual, 1)

	dev.FinishProgram()
	test.That(t, c.WaitUntilIdle(ctx), test.ShouldBeNil)
	test.That(t, len(c.motionCursor.Released()), test.ShouldEqual, 2)
	test.That(t, c.CurrentOps(), test.ShouldBeEmpty)

	var buf bytes.Buffer
	test.That(t, c.DebugBuffer(&buf), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "Move to [300, 0, 400] mm")
	test.That(t, buf.String(), test.ShouldContainSubstring, "Wait 250 ms")
}

func TestCompletionReleasesOnlyItsBlock(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Execute, nil)
	ctx := context.Background()
	test.That(t, c.ConnectToDevice(ctx, ""), test.ShouldBeNil)
	dev := fakeDriver(t, c)

	test.That(t, c.IssueMessageRequest("first"), test.ShouldBeNil)
	test.That(t, c.Execute(), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, dev.Runs(), test.ShouldEqual, 1)
	})

	// the device goes idle and the next block is started before the first completion arrives
	test.That(t, c.IssueMessageRequest("second"), test.ShouldBeNil)
	c.writeCursor.QueueActions()
	test.That(t, dev.StopProgramExecution(ctx, false), test.ShouldBeNil)
	c.TickWriteCursor()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, dev.Runs(), test.ShouldEqual, 2)
	})
	test.That(t, c.motionCursor.Accepted(), test.ShouldEqual, 2)

	c.onProgramComplete()
	test.That(t, len(c.motionCursor.Released()), test.ShouldEqual, 1)
	test.That(t, c.motionCursor.AreActionsPending(), test.ShouldBeTrue)

	dev.FinishProgram()
	test.That(t, c.WaitUntilIdle(ctx), test.ShouldBeNil)
	test.That(t, len(c.motionCursor.Released()), test.ShouldEqual, 2)
}

func TestStoppedBlockIsNotReleased(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Execute, nil)
	ctx := context.Background()
	test.That(t, c.ConnectToDevice(ctx, ""), test.ShouldBeNil)
	dev := fakeDriver(t, c)

	test.That(t, c.IssueMessageRequest("first"), test.ShouldBeNil)
	test.That(t, c.Execute(), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, dev.Runs(), test.ShouldEqual, 1)
	})
	test.That(t, c.StopProgramOnDevice(ctx, true), test.ShouldBeNil)

	// a completion nobody is waiting for
	c.onProgramComplete()
	test.That(t, c.motionCursor.Released(), test.ShouldBeEmpty)
}

func TestExecuteWorkerError(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Execute, nil)
	ctx := context.Background()
	test.That(t, c.ConnectToDevice(ctx, ""), test.ShouldBeNil)
	test.That(t, c.IssueMessageRequest("hi"), test.ShouldBeNil)

	test.That(t, c.DisconnectFromDevice(ctx), test.ShouldBeNil)
	test.That(t, c.Execute(), test.ShouldBeNil)
	err := c.WaitUntilIdle(ctx)
	test.That(t, errors.Is(err, driver.ErrNotConnected), test.ShouldBeTrue)
	test.That(t, c.WaitUntilIdle(ctx), test.ShouldBeNil)
}

func TestDeviceProgramCalls(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Execute, nil)
	ctx := context.Background()
	test.That(t, c.ConnectToDevice(ctx, "10.0.0.2"), test.ShouldBeNil)
	dev := fakeDriver(t, c)

	dir := t.TempDir()
	path := filepath.Join(dir, "pick.script")
	test.That(t, os.WriteFile(path, []byte("def pick():\nend\n"), 0o600), test.ShouldBeNil)
	test.That(t, c.LoadFileToDevice(ctx, path), test.ShouldBeNil)
	test.That(t, dev.Programs()[0], test.ShouldResemble, []string{"def pick():", "end"})
	test.That(t, c.LoadFileToDevice(ctx, dir+string(filepath.Separator)), test.ShouldNotBeNil)

	test.That(t, c.LoadProgramToDevice(ctx, []string{"a", "b"}), test.ShouldBeNil)
	test.That(t, c.SetRunMode(config.Loop), test.ShouldBeNil)
	test.That(t, c.StartProgramOnDevice(ctx), test.ShouldBeNil)
	dev.FinishProgram()
	test.That(t, dev.IsRunning(), test.ShouldBeTrue)
	test.That(t, dev.Runs(), test.ShouldEqual, 2)
	test.That(t, c.StopProgramOnDevice(ctx, false), test.ShouldBeNil)
	test.That(t, dev.IsRunning(), test.ShouldBeFalse)

	test.That(t, c.DisconnectFromDevice(ctx), test.ShouldBeNil)
	test.That(t, c.IsConnectedToDevice(), test.ShouldBeFalse)
}

func TestStream(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Stream, config.AttributeMap{
		"position": []float64{0, 0, 200},
	})
	ctx := context.Background()
	test.That(t, c.ConnectToDevice(ctx, ""), test.ShouldBeNil)
	dev := fakeDriver(t, c)

	test.That(t, c.IssueSpeedRequest(50, false), test.ShouldBeNil)
	test.That(t, c.IssueTranslationRequest(r3.Vector{Z: 100}, false), test.ShouldBeNil)
	test.That(t, dev.StreamedLines(), test.ShouldResemble, []string{
		"Set speed to 50 mm/s",
		"Move to [0, 0, 100] mm",
	})
	test.That(t, c.writeCursor.AreActionsPending(), test.ShouldBeFalse)
	test.That(t, len(c.motionCursor.Released()), test.ShouldEqual, 2)

	// pose queries go to the device while streaming
	pos, err := c.CurrentPosition(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldResemble, r3.Vector{Z: 200})

	test.That(t, errors.Is(c.Execute(), ErrWrongControlMode), test.ShouldBeTrue)
}

func TestStreamSendFailure(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Stream, config.AttributeMap{
		"position": []float64{0, 0, 200},
	})
	ctx := context.Background()
	test.That(t, c.ConnectToDevice(ctx, ""), test.ShouldBeNil)
	dev := fakeDriver(t, c)

	// the link drops under the control
	test.That(t, dev.DisconnectFromDevice(ctx), test.ShouldBeNil)
	err := c.IssueTranslationRequest(r3.Vector{Z: 100}, false)
	test.That(t, errors.Is(err, ErrNotStreamed), test.ShouldBeTrue)
	test.That(t, errors.Is(err, driver.ErrNotConnected), test.ShouldBeTrue)
	test.That(t, *c.virtualCursor.Snapshot().Position, test.ShouldResemble, r3.Vector{Z: 100})
	test.That(t, c.writeCursor.AreActionsPending(), test.ShouldBeTrue)
	test.That(t, dev.StreamedLines(), test.ShouldBeEmpty)

	speed, err := c.CurrentSpeed()
	test.That(t, err, test.ShouldBeNil)
	err = c.IssueSpeedRequest(speed+10, false)
	test.That(t, errors.Is(err, ErrStreamStalled), test.ShouldBeTrue)
	after, err := c.CurrentSpeed()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, after, test.ShouldEqual, speed)
	test.That(t, dev.StreamedLines(), test.ShouldBeEmpty)

	err = c.ResendStreamQueue(ctx)
	test.That(t, errors.Is(err, ErrNotStreamed), test.ShouldBeTrue)

	test.That(t, dev.ConnectToDevice(ctx, ""), test.ShouldBeNil)
	test.That(t, c.ResendStreamQueue(ctx), test.ShouldBeNil)
	test.That(t, dev.StreamedLines(), test.ShouldResemble, []string{"Move to [0, 0, 100] mm"})
	test.That(t, c.writeCursor.AreActionsPending(), test.ShouldBeFalse)
	test.That(t, len(c.motionCursor.Released()), test.ShouldEqual, 1)

	test.That(t, c.IssueSpeedRequest(50, false), test.ShouldBeNil)
	test.That(t, dev.StreamedLines(), test.ShouldResemble, []string{
		"Move to [0, 0, 100] mm",
		"Set speed to 50 mm/s",
	})
}

func TestResendStreamQueueOutsideStream(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Offline, nil)
	test.That(t, errors.Is(c.ResendStreamQueue(context.Background()), ErrWrongControlMode), test.ShouldBeTrue)
}

func TestResetAndClose(t *testing.T) {
	conf := config.Default()
	c, err := New(conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, c.IssueSpeedRequest(80, false), test.ShouldBeNil)
	test.That(t, c.SetControlMode(context.Background(), config.Execute), test.ShouldBeNil)
	test.That(t, c.SetRunMode(config.Loop), test.ShouldBeNil)

	test.That(t, c.Reset(context.Background()), test.ShouldBeNil)
	test.That(t, c.ControlMode(), test.ShouldEqual, config.Offline)
	test.That(t, c.RunMode(), test.ShouldEqual, config.Once)
	speed, err := c.CurrentSpeed()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, speed, test.ShouldEqual, config.DefaultSpeed)

	test.That(t, c.Close(context.Background()), test.ShouldBeNil)

	conf.Brand = "kuka"
	_, err = New(conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDebugDump(t *testing.T) {
	c := newControl(t, logging.NewTestLogger(t), config.Offline, nil)
	test.That(t, c.IssueTranslationRequest(r3.Vector{X: 10}, true), test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, c.DebugDump(&buf), test.ShouldBeNil)
	out := buf.String()
	for _, want := range []string{
		"Control mode", "offline", VirtualCursorName, WriteCursorName, MotionCursorName, "[10, 0, 0]",
		"No running operations",
	} {
		test.That(t, out, test.ShouldContainSubstring, want)
	}

	_, done := c.ops.Start(context.Background(), "execute_block")
	defer done()
	buf.Reset()
	test.That(t, c.DebugDump(&buf), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "execute_block")
	test.That(t, buf.String(), test.ShouldContainSubstring, "Less than a second")
}
