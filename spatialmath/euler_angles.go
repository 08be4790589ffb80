package spatialmath

import (
	"fmt"
	"math"

	"go.viam.com/machina/utils"
)

const (
	radToDeg = 180 / math.Pi
	degToRad = math.Pi / 180

	// eulerEpsilon is the tolerance, in degrees, used when comparing Euler angles component-wise.
	eulerEpsilon = 1e-3
)

// EulerAngles are intrinsic Tait-Bryan angles in degrees: a rotation of Yaw around Z, followed by
// Pitch around the new Y, followed by Roll around the newest X.
//
// Euler angles are not unique. Adding full turns gives the same orientation, and at Pitch = ±90
// every (Yaw, Roll) pair with the same Yaw ∓ Roll describes the same orientation. Compare them
// with IsEquivalent unless bit-level agreement is really what is wanted.
type EulerAngles struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// NewEulerAngles returns the Euler angles of the identity rotation.
func NewEulerAngles() EulerAngles {
	return EulerAngles{}
}

// EulerAngles returns ea; it satisfies the Orientation interface.
func (ea EulerAngles) EulerAngles() EulerAngles {
	return ea
}

// Rotation returns the quaternion qZ(yaw)·qY(pitch)·qX(roll).
func (ea EulerAngles) Rotation() Rotation {
	cy, sy := math.Cos(ea.Yaw*degToRad/2), math.Sin(ea.Yaw*degToRad/2)
	cp, sp := math.Cos(ea.Pitch*degToRad/2), math.Sin(ea.Pitch*degToRad/2)
	cr, sr := math.Cos(ea.Roll*degToRad/2), math.Sin(ea.Roll*degToRad/2)

	return NewRotation(
		cr*cp*cy+sr*sp*sy,
		sr*cp*cy-cr*sp*sy,
		cr*sp*cy+sr*cp*sy,
		cr*cp*sy-sr*sp*cy,
	)
}

// RotationMatrix returns the matrix Rz(yaw)·Ry(pitch)·Rx(roll).
func (ea EulerAngles) RotationMatrix() RotationMatrix {
	cy, sy := math.Cos(ea.Yaw*degToRad), math.Sin(ea.Yaw*degToRad)
	cp, sp := math.Cos(ea.Pitch*degToRad), math.Sin(ea.Pitch*degToRad)
	cr, sr := math.Cos(ea.Roll*degToRad), math.Sin(ea.Roll*degToRad)

	return RotationMatrix{mat: [9]float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr,
		-sp, cp * sr, cp * cr,
	}}
}

// AxisAngle returns the orientation as an axis and an angle.
func (ea EulerAngles) AxisAngle() AxisAngle {
	return ea.Rotation().AxisAngle()
}

// Equal compares the three angles one by one within a small tolerance, treating angles that are
// a whole turn apart as the same.
func (ea EulerAngles) Equal(o EulerAngles) bool {
	return math.Abs(utils.AngleDiffDeg(ea.Yaw, o.Yaw)) <= eulerEpsilon &&
		math.Abs(utils.AngleDiffDeg(ea.Pitch, o.Pitch)) <= eulerEpsilon &&
		math.Abs(utils.AngleDiffDeg(ea.Roll, o.Roll)) <= eulerEpsilon
}

// IsEquivalent reports whether both sets of angles describe the same orientation, including the
// different (yaw, roll) pairs that collapse onto each other at gimbal lock.
func (ea EulerAngles) IsEquivalent(o EulerAngles) bool {
	return ea.Rotation().IsEquivalent(o.Rotation())
}

// IsGimbalLocked reports whether pitch is close enough to ±90 that yaw and roll are not independent.
func (ea EulerAngles) IsGimbalLocked() bool {
	return math.Abs(math.Sin(ea.Pitch*degToRad)) >= 1-gimbalLockEpsilon
}

func (ea EulerAngles) String() string {
	return fmt.Sprintf("YawPitchRoll[Z:%.6f, Y:%.6f, X:%.6f]", ea.Yaw, ea.Pitch, ea.Roll)
}

func wrapDegrees(deg float64) float64 {
	return utils.WrapAngleDeg(deg)
}
