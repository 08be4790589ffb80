package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// AxisAngle is an orientation expressed as a rotation of Theta degrees around the axis
// (RX, RY, RZ). The axis does not need to be of unit length, it is normalized on conversion.
// See https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
type AxisAngle struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewAxisAngle returns a zero rotation around +Z.
func NewAxisAngle() AxisAngle {
	return AxisAngle{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// AxisAngle returns aa; it satisfies the Orientation interface.
func (aa AxisAngle) AxisAngle() AxisAngle {
	return aa
}

// Axis returns the rotation axis as a vector.
func (aa AxisAngle) Axis() r3.Vector {
	return r3.Vector{X: aa.RX, Y: aa.RY, Z: aa.RZ}
}

// Rotation converts the axis angle to a unit quaternion. A zero-length axis has no direction to
// rotate around and is treated as no rotation.
func (aa AxisAngle) Rotation() Rotation {
	n := aa.Normalize()
	if n.RX == 0 && n.RY == 0 && n.RZ == 0 {
		return IdentityRotation
	}
	half := aa.Theta * degToRad / 2
	sinA := math.Sin(half)
	return NewRotation(math.Cos(half), n.RX*sinA, n.RY*sinA, n.RZ*sinA)
}

// EulerAngles returns the orientation in Euler angle representation.
func (aa AxisAngle) EulerAngles() EulerAngles {
	return aa.Rotation().EulerAngles()
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (aa AxisAngle) RotationMatrix() RotationMatrix {
	return aa.Rotation().RotationMatrix()
}

// Normalize returns a copy with the axis scaled onto the unit sphere. A zero axis is left as is.
func (aa AxisAngle) Normalize() AxisAngle {
	norm := math.Sqrt(aa.RX*aa.RX + aa.RY*aa.RY + aa.RZ*aa.RZ)
	if norm == 0 {
		return aa
	}
	return AxisAngle{Theta: aa.Theta, RX: aa.RX / norm, RY: aa.RY / norm, RZ: aa.RZ / norm}
}

// ToR3 returns the rotation vector: the unit axis scaled by the angle in degrees.
func (aa AxisAngle) ToR3() r3.Vector {
	n := aa.Normalize()
	return r3.Vector{X: n.RX * aa.Theta, Y: n.RY * aa.Theta, Z: n.RZ * aa.Theta}
}

// R3ToAxisAngle converts a rotation vector, whose length is the angle in degrees, to an AxisAngle.
func R3ToAxisAngle(v r3.Vector) AxisAngle {
	theta := v.Norm()
	if theta == 0 {
		return NewAxisAngle()
	}
	return AxisAngle{Theta: theta, RX: v.X / theta, RY: v.Y / theta, RZ: v.Z / theta}
}

func (aa AxisAngle) String() string {
	return fmt.Sprintf("AxisAngle[%.6f, %.6f, %.6f, %.6f]", aa.Theta, aa.RX, aa.RY, aa.RZ)
}
