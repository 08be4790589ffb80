package control

import (
	"fmt"
	"io"
	"time"

	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"go.viam.com/machina/action"
	"go.viam.com/machina/cursor"
)

// DebugDump writes the control settings, the cursors and the action buffer as tables.
func (c *Control) DebugDump(w io.Writer) error {
	c.mu.RLock()
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRow(table.Row{"Brand", c.conf.Brand})
	t.AppendRow(table.Row{"Control mode", c.controlMode})
	t.AppendRow(table.Row{"Run mode", c.runMode})
	connected, ip := false, ""
	if c.drv != nil {
		connected = c.drv.IsConnected()
		if connected {
			ip = c.drv.IP()
		}
	}
	t.AppendRow(table.Row{"Connected", connected})
	t.AppendRow(table.Row{"Controller IP", ip})
	t.AppendRow(table.Row{"Cursors initialized", c.cursorsInitialized})
	t.AppendRow(table.Row{"Worker active", c.workerActive.Load()})
	c.mu.RUnlock()

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	if err := c.debugOperations(w); err != nil {
		return err
	}
	if err := c.DebugRobotCursors(w); err != nil {
		return err
	}
	return c.DebugBuffer(w)
}

func (c *Control) debugOperations(w io.Writer) error {
	ops := c.ops.Running()
	if len(ops) == 0 {
		_, err := fmt.Fprintln(w, "No running operations")
		return err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Operation", "ID", "Running for"})
	for _, op := range ops {
		t.AppendRow(table.Row{op.Method, op.ID.String(), units.HumanDuration(time.Since(op.Started))})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// DebugBuffer writes every action the virtual cursor accepted, and whether it was written to
// and executed by the device.
func (c *Control) DebugBuffer(w io.Writer) error {
	c.mu.RLock()
	issued := c.virtualCursor.Committed()
	written := actionIDs(c.writeCursor.Released())
	executed := actionIDs(c.motionCursor.Released())
	c.mu.RUnlock()

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "ID", "Action", "Written", "Executed"})
	for i, act := range issued {
		t.AppendRow(table.Row{i, act.ID(), act.String(), written[act.ID()], executed[act.ID()]})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// DebugRobotCursors writes the state of each cursor.
func (c *Control) DebugRobotCursors(w io.Writer) error {
	c.mu.RLock()
	cursors := []*cursor.RobotCursor{c.virtualCursor, c.writeCursor, c.motionCursor}
	c.mu.RUnlock()

	t := table.NewWriter()
	t.AppendHeader(table.Row{
		"Cursor", "Position (mm)", "Rotation", "Joints (deg)", "Speed", "Precision", "Motion", "Frame", "Tool", "Pending",
	})
	for _, cur := range cursors {
		s := cur.Snapshot()
		pos, rot, joints, tool := "unknown", "unknown", "unknown", ""
		if s.Position != nil {
			pos = action.FormatVector(*s.Position)
		}
		if s.Rotation != nil {
			rot = action.FormatRotation(*s.Rotation)
		}
		if s.Joints != nil {
			joints = s.Joints.String()
		}
		if s.Tool != nil {
			tool = s.Tool.Name
		}
		t.AppendRow(table.Row{
			cur.Name(),
			pos,
			rot,
			joints,
			action.FormatNumber(s.Speed),
			action.FormatNumber(s.Precision),
			s.MotionType,
			s.ReferenceCS,
			tool,
			len(cur.Committed()) - len(cur.Released()),
		})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func actionIDs(acts []action.Action) map[int64]bool {
	return lo.SliceToMap(acts, func(act action.Action) (int64, bool) {
		return act.ID(), true
	})
}
