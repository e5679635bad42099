package tf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is a rigid transform: a rotation followed by a translation,
// mapping child-frame coordinates into the parent frame.
// Rotation is expected to be a unit quaternion.
type Transform struct {
	Translation r3.Vec
	Rotation    quat.Number
}

// Identity returns the transform that maps every point onto itself.
func Identity() Transform {
	return Transform{Rotation: quat.Number{Real: 1}}
}

// NewTransform builds a transform with the rotation normalised.
func NewTransform(translation r3.Vec, rotation quat.Number) Transform {
	return Transform{Translation: translation, Rotation: normalizeQuat(rotation)}
}

// Normalize returns t with a unit rotation. A zero rotation becomes identity.
func (t Transform) Normalize() Transform {
	t.Rotation = normalizeQuat(t.Rotation)
	return t
}

// Apply maps p from the child frame into the parent frame.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(rotate(t.Rotation, p), t.Translation)
}

// Inverse returns the transform mapping parent-frame coordinates back into
// the child frame.
func (t Transform) Inverse() Transform {
	inv := quat.Conj(t.Rotation)
	return Transform{
		Translation: r3.Scale(-1, rotate(inv, t.Translation)),
		Rotation:    inv,
	}
}

// Compose returns a∘b: b is applied first, then a.
func Compose(a, b Transform) Transform {
	return Transform{
		Translation: a.Apply(b.Translation),
		Rotation:    normalizeQuat(quat.Mul(a.Rotation, b.Rotation)),
	}
}

// ApproxEqual reports whether t and o agree within tol, treating q and -q
// as the same rotation.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	if r3.Norm(r3.Sub(t.Translation, o.Translation)) > tol {
		return false
	}
	d := quatDot(t.Rotation, o.Rotation)
	return math.Abs(math.Abs(d)-1) <= tol
}

func (t Transform) String() string {
	q := t.Rotation
	return fmt.Sprintf("t=[%.6g %.6g %.6g] q=[%.6g %.6g %.6g %.6g]",
		t.Translation.X, t.Translation.Y, t.Translation.Z,
		q.Imag, q.Jmag, q.Kmag, q.Real)
}

// rotate computes q·(0,p)·q*.
func rotate(q quat.Number, p r3.Vec) r3.Vec {
	v := quat.Number{Imag: p.X, Jmag: p.Y, Kmag: p.Z}
	r := quat.Mul(quat.Mul(q, v), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func normalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

func quatDot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}
