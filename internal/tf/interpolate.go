package tf

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// slerpLinearThreshold is the |cos θ| above which rotations are close enough
// that normalised linear interpolation replaces slerp (sin θ ≈ 0).
const slerpLinearThreshold = 0.9995

// Interpolate blends two transforms. weight is the share of t1: weight=1
// returns t1 and weight=0 returns t2. Translation is interpolated linearly
// and rotation along the shortest arc. Weights outside [0, 1] extrapolate.
func Interpolate(t1, t2 Transform, weight float64) Transform {
	translation := r3.Add(
		r3.Scale(weight, t1.Translation),
		r3.Scale(1-weight, t2.Translation),
	)
	return Transform{
		Translation: translation,
		Rotation:    slerp(t2.Rotation, t1.Rotation, weight),
	}
}

// slerp moves from a (u=0) towards b (u=1).
func slerp(a, b quat.Number, u float64) quat.Number {
	a = normalizeQuat(a)
	b = normalizeQuat(b)

	cos := quatDot(a, b)
	if cos < 0 {
		b = quat.Scale(-1, b)
		cos = -cos
	}

	if cos > slerpLinearThreshold {
		return normalizeQuat(quat.Add(quat.Scale(1-u, a), quat.Scale(u, b)))
	}

	theta := math.Acos(math.Min(cos, 1))
	sin := math.Sin(theta)
	wa := math.Sin((1-u)*theta) / sin
	wb := math.Sin(u*theta) / sin
	return normalizeQuat(quat.Add(quat.Scale(wa, a), quat.Scale(wb, b)))
}
