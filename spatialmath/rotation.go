// Package spatialmath defines the orientation representations used to describe a robot's tool
// center point, and the conversions between them.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const (
	// rotationEpsilon is the per-component tolerance for quaternion comparisons.
	rotationEpsilon = 1e-6

	// gimbalLockEpsilon is how close |sin(pitch)| may get to 1 before yaw and roll are
	// considered to have collapsed into a single degree of freedom.
	gimbalLockEpsilon = 1e-6
)

// Rotation is an orientation expressed as a unit quaternion. The zero value is not a valid rotation,
// use NewRotation or IdentityRotation.
type Rotation struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

var (
	// IdentityRotation signifies no rotation.
	IdentityRotation = Rotation{W: 1}

	// FlippedAroundY is a half turn around the Y axis, a TCP pointing straight down.
	FlippedAroundY = Rotation{W: 0, X: 0, Y: 1, Z: 0}
)

// NewRotation returns the unit quaternion with the direction of (w, x, y, z). A degenerate
// zero-length input yields the identity.
func NewRotation(w, x, y, z float64) Rotation {
	return rotationFromQuat(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z})
}

// NewRotationFromAxisAngle returns the rotation of angleDeg degrees around axis.
func NewRotationFromAxisAngle(axis r3.Vector, angleDeg float64) Rotation {
	return AxisAngle{Theta: angleDeg, RX: axis.X, RY: axis.Y, RZ: axis.Z}.Rotation()
}

func rotationFromQuat(q quat.Number) Rotation {
	norm := quat.Abs(q)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return IdentityRotation
	}
	q = quat.Scale(1/norm, q)
	return Rotation{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// Quaternion returns the rotation as a gonum quaternion.
func (r Rotation) Quaternion() quat.Number {
	return quat.Number{Real: r.W, Imag: r.X, Jmag: r.Y, Kmag: r.Z}
}

// Rotation returns r; it satisfies the Orientation interface.
func (r Rotation) Rotation() Rotation {
	return r
}

// Norm returns the length of the quaternion.
func (r Rotation) Norm() float64 {
	return quat.Abs(r.Quaternion())
}

// Multiply composes two rotations, r applied after o when acting on world vectors. The result is
// renormalized so that accumulated drift never breaks the unit length invariant.
func (r Rotation) Multiply(o Rotation) Rotation {
	return rotationFromQuat(quat.Mul(r.Quaternion(), o.Quaternion()))
}

// Inverse returns the rotation that undoes r.
func (r Rotation) Inverse() Rotation {
	return rotationFromQuat(quat.Conj(r.Quaternion()))
}

// Negate returns -q, which represents the same orientation as q.
func (r Rotation) Negate() Rotation {
	return Rotation{W: -r.W, X: -r.X, Y: -r.Y, Z: -r.Z}
}

// RotateVector rotates v by r.
func (r Rotation) RotateVector(v r3.Vector) r3.Vector {
	q := r.Quaternion()
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// Equal reports whether every component of r and o differ by no more than a fixed small tolerance.
// It does not account for the double cover, see IsEquivalent.
func (r Rotation) Equal(o Rotation) bool {
	return quaternionComponentsWithin(r, o, rotationEpsilon)
}

// IsEquivalent reports whether r and o describe the same orientation, that is q ≈ q' or q ≈ -q'.
func (r Rotation) IsEquivalent(o Rotation) bool {
	return r.IsSimilar(o, rotationEpsilon)
}

// IsSimilar is IsEquivalent with an explicit per-component tolerance.
func (r Rotation) IsSimilar(o Rotation, epsilon float64) bool {
	return quaternionComponentsWithin(r, o, epsilon) || quaternionComponentsWithin(r, o.Negate(), epsilon)
}

func quaternionComponentsWithin(a, b Rotation, epsilon float64) bool {
	return math.Abs(a.W-b.W) <= epsilon &&
		math.Abs(a.X-b.X) <= epsilon &&
		math.Abs(a.Y-b.Y) <= epsilon &&
		math.Abs(a.Z-b.Z) <= epsilon
}

// EulerAngles returns the rotation as yaw-pitch-roll angles. Near gimbal lock the roll is fixed to 0
// and the whole rotation about the vertical is folded into the yaw.
func (r Rotation) EulerAngles() EulerAngles {
	w, x, y, z := r.W, r.X, r.Y, r.Z
	sinPitch := 2 * (w*y - z*x)

	if math.Abs(sinPitch) >= 1-gimbalLockEpsilon {
		// With pitch = ±90 only yaw ∓ roll is observable: it equals 2·atan2(z, w).
		return EulerAngles{
			Yaw:   wrapDegrees(radToDeg * 2 * math.Atan2(z, w)),
			Pitch: math.Copysign(90, sinPitch),
			Roll:  0,
		}
	}

	return EulerAngles{
		Yaw:   radToDeg * math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)),
		Pitch: radToDeg * math.Asin(sinPitch),
		Roll:  radToDeg * math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)),
	}
}

// RotationMatrix returns the rotation as an orthonormal 3x3 matrix.
func (r Rotation) RotationMatrix() RotationMatrix {
	w, x, y, z := r.W, r.X, r.Y, r.Z
	return RotationMatrix{mat: [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}}
}

// AxisAngle returns the rotation as an axis and an angle in degrees, with the angle in [0, 180].
func (r Rotation) AxisAngle() AxisAngle {
	q := r
	if q.W < 0 {
		q = q.Negate()
	}
	sinHalf := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if sinHalf < 1e-12 {
		return NewAxisAngle()
	}
	return AxisAngle{
		Theta: radToDeg * 2 * math.Atan2(sinHalf, q.W),
		RX:    q.X / sinHalf,
		RY:    q.Y / sinHalf,
		RZ:    q.Z / sinHalf,
	}
}

func (r Rotation) String() string {
	return fmt.Sprintf("Rotation[%.6f, %.6f, %.6f, %.6f]", r.W, r.X, r.Y, r.Z)
}
