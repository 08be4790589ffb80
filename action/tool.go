package action

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/machina/spatialmath"
)

// Tool is an end effector that can be attached to the robot flange.
type Tool struct {
	Name string
	// TCPPosition is the tool tip, in mm, expressed in the flange frame.
	TCPPosition r3.Vector
	// TCPRotation is the tool tip orientation relative to the flange.
	TCPRotation spatialmath.Rotation
	// Weight in kg.
	Weight float64
}

// NewTool returns a tool with the given tip offset.
func NewTool(name string, tcpPosition r3.Vector, tcpRotation spatialmath.Rotation, weight float64) (Tool, error) {
	if name == "" {
		return Tool{}, errors.New("tool name cannot be empty")
	}
	if weight < 0 {
		return Tool{}, errors.Errorf("tool %q has a negative weight", name)
	}
	return Tool{Name: name, TCPPosition: tcpPosition, TCPRotation: tcpRotation, Weight: weight}, nil
}

func (t Tool) String() string {
	return fmt.Sprintf("Tool[%q, tcp %s, %s, %s kg]",
		t.Name, FormatVector(t.TCPPosition), FormatRotation(t.TCPRotation), FormatNumber(t.Weight))
}
