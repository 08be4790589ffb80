package spatialmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func randomAngle(rnd *rand.Rand) float64 {
	return -1440 + rnd.Float64()*2880
}

func TestEulerRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	checked := 0
	for i := 0; i < 2000; i++ {
		eu1 := EulerAngles{Yaw: randomAngle(rnd), Pitch: randomAngle(rnd), Roll: randomAngle(rnd)}
		q1 := eu1.Rotation()
		eu2 := q1.EulerAngles()
		if math.Abs(eu2.Pitch) > 89.9 {
			// covered by TestGimbalLock
			continue
		}
		q2 := eu2.Rotation()
		eu3 := q2.EulerAngles()
		q3 := eu3.Rotation()

		test.That(t, eu1.IsEquivalent(eu2), test.ShouldBeTrue)
		test.That(t, eu2.Equal(eu3), test.ShouldBeTrue)
		test.That(t, q1.IsEquivalent(q2), test.ShouldBeTrue)
		test.That(t, q2.IsEquivalent(q3), test.ShouldBeTrue)
		checked++
	}
	test.That(t, checked, test.ShouldBeGreaterThan, 1900)
}

func TestEulerRoundTripRightAngles(t *testing.T) {
	for yaw := -4; yaw <= 4; yaw++ {
		for pitch := -4; pitch <= 4; pitch++ {
			for roll := -4; roll <= 4; roll++ {
				eu1 := EulerAngles{Yaw: 90 * float64(yaw), Pitch: 90 * float64(pitch), Roll: 90 * float64(roll)}
				q1 := eu1.Rotation()
				eu2 := q1.EulerAngles()
				q2 := eu2.Rotation()
				eu3 := q2.EulerAngles()

				test.That(t, eu1.IsEquivalent(eu2), test.ShouldBeTrue)
				test.That(t, eu2.Equal(eu3), test.ShouldBeTrue)
				test.That(t, q1.IsEquivalent(q2), test.ShouldBeTrue)
				test.That(t, eu2.Pitch, test.ShouldBeBetweenOrEqual, -90.0, 90.0)
			}
		}
	}
}

func TestGimbalLock(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	for _, sign := range []float64{1, -1} {
		for i := 0; i < 500; i++ {
			eu1 := EulerAngles{
				Yaw:   randomAngle(rnd),
				Pitch: sign * (89.98 + rnd.Float64()*0.02),
				Roll:  randomAngle(rnd),
			}
			q1 := eu1.Rotation()
			eu2 := q1.EulerAngles()
			q2 := eu2.Rotation()

			if !eu1.Equal(eu2) {
				test.That(t, q1.IsSimilar(q2, 1e-3), test.ShouldBeTrue)
			}
		}
	}

	t.Run("exact lock folds roll into yaw", func(t *testing.T) {
		eu := EulerAngles{Yaw: 30, Pitch: 90, Roll: 10}.Rotation().EulerAngles()
		test.That(t, eu.Pitch, test.ShouldEqual, 90.0)
		test.That(t, eu.Roll, test.ShouldEqual, 0.0)
		test.That(t, eu.Yaw, test.ShouldAlmostEqual, 20, 1e-6)

		eu = EulerAngles{Yaw: 30, Pitch: -90, Roll: 10}.Rotation().EulerAngles()
		test.That(t, eu.Pitch, test.ShouldEqual, -90.0)
		test.That(t, eu.Roll, test.ShouldEqual, 0.0)
		test.That(t, eu.Yaw, test.ShouldAlmostEqual, 40, 1e-6)
		test.That(t, eu.IsGimbalLocked(), test.ShouldBeTrue)
	})
}

func TestMatrixRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		eu1 := EulerAngles{Yaw: randomAngle(rnd), Pitch: randomAngle(rnd), Roll: randomAngle(rnd)}
		m1 := eu1.RotationMatrix()
		eu2 := m1.EulerAngles()
		if math.Abs(eu2.Pitch) > 89.9 {
			continue
		}
		m2 := eu2.RotationMatrix()
		eu3 := m2.EulerAngles()

		test.That(t, eu1.IsEquivalent(eu2), test.ShouldBeTrue)
		test.That(t, eu2.Equal(eu3), test.ShouldBeTrue)
		test.That(t, m1.Equal(m2), test.ShouldBeTrue)
		test.That(t, m1.AlmostEqual(eu1.Rotation().RotationMatrix(), 1e-9), test.ShouldBeTrue)
		test.That(t, m1.Rotation().IsEquivalent(eu1.Rotation()), test.ShouldBeTrue)
	}

	rnd = rand.New(rand.NewSource(4))
	for i := 0; i < 500; i++ {
		eu1 := EulerAngles{Yaw: randomAngle(rnd), Pitch: 89.98 + rnd.Float64()*0.02, Roll: randomAngle(rnd)}
		m1 := eu1.RotationMatrix()
		eu2 := m1.EulerAngles()
		test.That(t, eu2.Pitch, test.ShouldEqual, 90.0)
		test.That(t, eu1.Rotation().IsSimilar(eu2.Rotation(), 1e-3), test.ShouldBeTrue)
	}
}

func TestRotationEquality(t *testing.T) {
	q := EulerAngles{Yaw: 10, Pitch: 20, Roll: 30}.Rotation()
	test.That(t, q.Equal(q), test.ShouldBeTrue)
	test.That(t, q.Equal(q.Negate()), test.ShouldBeFalse)
	test.That(t, q.IsEquivalent(q.Negate()), test.ShouldBeTrue)
	test.That(t, q.IsEquivalent(IdentityRotation), test.ShouldBeFalse)

	test.That(t, EulerAngles{Yaw: 180}.Equal(EulerAngles{Yaw: -180}), test.ShouldBeTrue)
	test.That(t, EulerAngles{Yaw: 30, Pitch: 90}.Equal(EulerAngles{Yaw: 40, Pitch: 90, Roll: 10}), test.ShouldBeFalse)
	test.That(t, EulerAngles{Yaw: 30, Pitch: 90}.IsEquivalent(EulerAngles{Yaw: 40, Pitch: 90, Roll: 10}), test.ShouldBeTrue)
}

func TestRotationNormalization(t *testing.T) {
	q := NewRotation(2, 0, 0, 0)
	test.That(t, q.Equal(IdentityRotation), test.ShouldBeTrue)

	test.That(t, NewRotation(0, 0, 0, 0), test.ShouldResemble, IdentityRotation)

	q = NewRotation(1, 2, 3, 4)
	test.That(t, q.Norm(), test.ShouldAlmostEqual, 1, 1e-12)

	acc := IdentityRotation
	step := NewRotationFromAxisAngle(r3.Vector{X: 1, Y: 1, Z: 0}, 7)
	for i := 0; i < 10000; i++ {
		acc = acc.Multiply(step)
	}
	test.That(t, acc.Norm(), test.ShouldAlmostEqual, 1, 1e-12)
}

func TestRotateAboutZ(t *testing.T) {
	rz := NewRotationFromAxisAngle(r3.Vector{Z: 1}, 90)
	eu := rz.EulerAngles()
	test.That(t, eu.Yaw, test.ShouldAlmostEqual, 90, 1e-6)
	test.That(t, eu.Pitch, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, eu.Roll, test.ShouldAlmostEqual, 0, 1e-6)

	v := rz.RotateVector(r3.Vector{X: 1})
	test.That(t, v.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, v.Y, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, v.Z, test.ShouldAlmostEqual, 0, 1e-9)

	back := rz.Multiply(rz.Inverse())
	test.That(t, back.IsEquivalent(IdentityRotation), test.ShouldBeTrue)
}

func TestFlippedAroundY(t *testing.T) {
	down := FlippedAroundY.RotateVector(r3.Vector{Z: 1})
	test.That(t, down.Z, test.ShouldAlmostEqual, -1, 1e-9)

	eu := FlippedAroundY.EulerAngles()
	test.That(t, eu.IsEquivalent(EulerAngles{Pitch: 180}), test.ShouldBeTrue)
}
