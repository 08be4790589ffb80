package spatialmath

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// NumJoints is the number of actuators described by Joints.
const NumJoints = 6

// Joints is a six-axis actuator configuration, one angle per joint in degrees. Range limits are
// robot specific and not enforced here.
type Joints [NumJoints]float64

// NewJoints builds Joints from a slice, which must have exactly NumJoints values.
func NewJoints(values []float64) (Joints, error) {
	var j Joints
	if len(values) != NumJoints {
		return j, errors.Errorf("expected %d joint values but got %d", NumJoints, len(values))
	}
	copy(j[:], values)
	return j, nil
}

// Add returns the joint-wise sum j + o.
func (j Joints) Add(o Joints) Joints {
	var out Joints
	for i := range j {
		out[i] = j[i] + o[i]
	}
	return out
}

// Equal compares the joints one by one within a small tolerance.
func (j Joints) Equal(o Joints) bool {
	for i := range j {
		if math.Abs(j[i]-o[i]) > rotationEpsilon {
			return false
		}
	}
	return true
}

// Radians returns the joint values converted to radians.
func (j Joints) Radians() []float64 {
	out := make([]float64, NumJoints)
	for i, v := range j {
		out[i] = v * degToRad
	}
	return out
}

func (j Joints) String() string {
	parts := make([]string, NumJoints)
	for i, v := range j {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return "Joints[" + strings.Join(parts, ", ") + "]"
}
