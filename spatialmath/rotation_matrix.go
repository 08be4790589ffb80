package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RotationMatrix is a 3x3 orthonormal matrix stored in row-major order.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates a rotation matrix from 9 row-major values. The input is projected onto the
// closest proper rotation, so values that drifted slightly off orthonormality are accepted.
func NewRotationMatrix(m []float64) (RotationMatrix, error) {
	if len(m) != 9 {
		return RotationMatrix{}, errors.Errorf("input slice has %d elements, need exactly 9", len(m))
	}
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return RotationMatrix{}, errors.New("rotation matrix has non-finite elements")
		}
	}
	var arr [9]float64
	copy(arr[:], m)
	return orthonormalize(arr)
}

// NewRotationMatrixFromAxes builds the matrix whose columns are the given X, Y and Z axes.
func NewRotationMatrixFromAxes(x, y, z r3.Vector) (RotationMatrix, error) {
	return NewRotationMatrix([]float64{
		x.X, y.X, z.X,
		x.Y, y.Y, z.Y,
		x.Z, y.Z, z.Z,
	})
}

// orthonormalize computes the polar decomposition of m and keeps its rotational factor U·Vᵀ.
func orthonormalize(m [9]float64) (RotationMatrix, error) {
	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(3, 3, m[:]), mat.SVDFull); !ok {
		return RotationMatrix{}, errors.New("could not factorize rotation matrix")
	}
	if svd.Values(nil)[2] < 1e-9 {
		return RotationMatrix{}, errors.New("rotation matrix is singular")
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// flip the axis of the smallest singular value to get a proper rotation
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.mat[i*3+j] = r.At(i, j)
		}
	}
	return out, nil
}

// At returns the element at row i, column j.
func (rm RotationMatrix) At(row, col int) float64 {
	return rm.mat[row*3+col]
}

// Row returns row i as a vector.
func (rm RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[row*3], Y: rm.mat[row*3+1], Z: rm.mat[row*3+2]}
}

// Col returns column j as a vector, that is the image of the j-th basis axis.
func (rm RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[3+col], Z: rm.mat[6+col]}
}

// Values returns a copy of the row-major elements.
func (rm RotationMatrix) Values() []float64 {
	out := make([]float64, 9)
	copy(out, rm.mat[:])
	return out
}

// RotationMatrix returns rm; it satisfies the Orientation interface.
func (rm RotationMatrix) RotationMatrix() RotationMatrix {
	return rm
}

// Rotation converts the matrix to a quaternion using Shepperd's method, picking the largest pivot
// for numerical stability.
func (rm RotationMatrix) Rotation() Rotation {
	m := rm.mat
	trace := m[0] + m[4] + m[8]
	switch {
	case trace > 0:
		s := 2 * math.Sqrt(trace+1)
		return NewRotation(s/4, (m[7]-m[5])/s, (m[2]-m[6])/s, (m[3]-m[1])/s)
	case m[0] > m[4] && m[0] > m[8]:
		s := 2 * math.Sqrt(1+m[0]-m[4]-m[8])
		return NewRotation((m[7]-m[5])/s, s/4, (m[1]+m[3])/s, (m[2]+m[6])/s)
	case m[4] > m[8]:
		s := 2 * math.Sqrt(1+m[4]-m[0]-m[8])
		return NewRotation((m[2]-m[6])/s, (m[1]+m[3])/s, s/4, (m[5]+m[7])/s)
	default:
		s := 2 * math.Sqrt(1+m[8]-m[0]-m[4])
		return NewRotation((m[3]-m[1])/s, (m[2]+m[6])/s, (m[5]+m[7])/s, s/4)
	}
}

// EulerAngles decomposes Rz(yaw)·Ry(pitch)·Rx(roll). At gimbal lock roll is fixed to 0.
func (rm RotationMatrix) EulerAngles() EulerAngles {
	m := rm.mat
	sinPitch := -m[6]
	if math.Abs(sinPitch) >= 1-gimbalLockEpsilon {
		return EulerAngles{
			Yaw:   radToDeg * math.Atan2(-m[1], m[4]),
			Pitch: math.Copysign(90, sinPitch),
			Roll:  0,
		}
	}
	return EulerAngles{
		Yaw:   radToDeg * math.Atan2(m[3], m[0]),
		Pitch: radToDeg * math.Asin(sinPitch),
		Roll:  radToDeg * math.Atan2(m[7], m[8]),
	}
}

// AxisAngle returns the orientation in axis angle representation.
func (rm RotationMatrix) AxisAngle() AxisAngle {
	return rm.Rotation().AxisAngle()
}

// Mul returns rm·o.
func (rm RotationMatrix) Mul(o RotationMatrix) RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += rm.mat[i*3+k] * o.mat[k*3+j]
			}
			out.mat[i*3+j] = sum
		}
	}
	return out
}

// Transpose returns the transpose, which for a rotation is also its inverse.
func (rm RotationMatrix) Transpose() RotationMatrix {
	m := rm.mat
	return RotationMatrix{mat: [9]float64{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}}
}

// MulVec rotates v.
func (rm RotationMatrix) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{X: rm.Row(0).Dot(v), Y: rm.Row(1).Dot(v), Z: rm.Row(2).Dot(v)}
}

// AlmostEqual compares two matrices element by element.
func (rm RotationMatrix) AlmostEqual(o RotationMatrix, epsilon float64) bool {
	for i := range rm.mat {
		if math.Abs(rm.mat[i]-o.mat[i]) > epsilon {
			return false
		}
	}
	return true
}

func (rm RotationMatrix) String() string {
	m := rm.mat
	return fmt.Sprintf("RotationMatrix[[%.4f %.4f %.4f] [%.4f %.4f %.4f] [%.4f %.4f %.4f]]",
		m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8])
}

// NewIdentityRotationMatrix returns the matrix of the identity rotation.
func NewIdentityRotationMatrix() RotationMatrix {
	return RotationMatrix{mat: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// Equal compares the matrices element by element within a small tolerance.
func (rm RotationMatrix) Equal(o RotationMatrix) bool {
	return rm.AlmostEqual(o, rotationEpsilon)
}

// IsEquivalent reports whether both matrices describe the same orientation.
func (rm RotationMatrix) IsEquivalent(o RotationMatrix) bool {
	return rm.Rotation().IsEquivalent(o.Rotation())
}
