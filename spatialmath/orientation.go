package spatialmath

// Orientation is an interface used to express the different parameterizations of the orientation
// of a robot's tool center point.
type Orientation interface {
	Rotation() Rotation
	EulerAngles() EulerAngles
	RotationMatrix() RotationMatrix
	AxisAngle() AxisAngle
}

var (
	_ Orientation = Rotation{}
	_ Orientation = EulerAngles{}
	_ Orientation = RotationMatrix{}
	_ Orientation = AxisAngle{}
)

// NewZeroOrientation returns an orientation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return IdentityRotation
}

// OrientationAlmostEqual will return a bool describing whether 2 orientations are approximately the same.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return o1.Rotation().IsSimilar(o2.Rotation(), 1e-5)
}

// OrientationBetween returns the rotation that takes o1 to o2 when applied in the world frame.
func OrientationBetween(o1, o2 Orientation) Rotation {
	return o2.Rotation().Multiply(o1.Rotation().Inverse())
}
