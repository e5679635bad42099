package tf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// rotZ returns a unit quaternion rotating by angle radians about +Z.
func rotZ(angle float64) quat.Number {
	return quat.Number{Real: math.Cos(angle / 2), Kmag: math.Sin(angle / 2)}
}

func TestInterpolate_Endpoints(t *testing.T) {
	t1 := NewTransform(r3.Vec{X: 1, Y: 2, Z: 3}, rotZ(0.2))
	t2 := NewTransform(r3.Vec{X: -4, Y: 0, Z: 8}, rotZ(1.4))

	assert.True(t, Interpolate(t1, t2, 1).ApproxEqual(t1, 1e-9))
	assert.True(t, Interpolate(t1, t2, 0).ApproxEqual(t2, 1e-9))
}

func TestInterpolate_RotationHalfway(t *testing.T) {
	got := Interpolate(Identity(), NewTransform(r3.Vec{}, rotZ(math.Pi/2)), 0.5)
	want := NewTransform(r3.Vec{}, rotZ(math.Pi/4))

	if !got.ApproxEqual(want, 1e-9) {
		t.Errorf("Interpolate() = %s, want %s", got, want)
	}
	assert.InDelta(t, 1.0, quat.Abs(got.Rotation), 1e-12)
}

func TestInterpolate_ShortestArc(t *testing.T) {
	target := rotZ(math.Pi / 2)
	negated := quat.Scale(-1, target)

	a := Interpolate(Identity(), Transform{Rotation: target}, 0.5)
	b := Interpolate(Identity(), Transform{Rotation: negated}, 0.5)

	if !a.ApproxEqual(b, 1e-9) {
		t.Errorf("q and -q interpolate differently: %s vs %s", a, b)
	}
}

func TestInterpolate_NearlyParallelRotations(t *testing.T) {
	t1 := NewTransform(r3.Vec{}, rotZ(1e-6))
	t2 := NewTransform(r3.Vec{}, rotZ(2e-6))

	got := Interpolate(t1, t2, 0.5)
	assert.True(t, got.ApproxEqual(NewTransform(r3.Vec{}, rotZ(1.5e-6)), 1e-9))
}

func TestInterpolate_Extrapolates(t *testing.T) {
	t1 := NewTransform(r3.Vec{X: 1}, rotZ(0.4))
	t2 := NewTransform(r3.Vec{}, rotZ(0.2))

	tests := []struct {
		weight float64
		wantX  float64
		wantZ  float64
	}{
		{weight: 2, wantX: 2, wantZ: 0.6},
		{weight: -1, wantX: -1, wantZ: 0},
		{weight: 1.0000001, wantX: 1.0000001, wantZ: 0.40000002},
	}

	for _, tt := range tests {
		got := Interpolate(t1, t2, tt.weight)
		assert.InDelta(t, tt.wantX, got.Translation.X, 1e-9, "weight %v", tt.weight)
		assert.True(t, got.ApproxEqual(NewTransform(got.Translation, rotZ(tt.wantZ)), 1e-6),
			"weight %v: got %s", tt.weight, got)
		assert.InDelta(t, 1.0, quat.Abs(got.Rotation), 1e-12)
	}
}
