package geometry

import "math"

// snapEpsilon collapses floating point noise from trigonometric functions so
// that quarter-turn rotations map integer pixel coordinates exactly
const snapEpsilon = 1e-12

// Affine is a 2D affine transform in pixel space:
//
//	x' = M00*x + M01*y + M02
//	y' = M10*x + M11*y + M12
type Affine struct {
	M00, M01, M02 float64
	M10, M11, M12 float64
}

// Identity returns the identity transform
func Identity() Affine {
	return Affine{M00: 1, M11: 1}
}

// Rotation returns a rotation by theta radians about the origin. With the
// image y axis pointing down a positive angle turns clockwise on screen.
func Rotation(theta float64) Affine {
	c, s := snap(math.Cos(theta)), snap(math.Sin(theta))
	return Affine{M00: c, M01: -s, M10: s, M11: c}
}

// Translation returns a translation by (tx, ty)
func Translation(tx, ty float64) Affine {
	return Affine{M00: 1, M02: tx, M11: 1, M12: ty}
}

// Concat returns the transform that applies t first and then a
func (a Affine) Concat(t Affine) Affine {
	return Affine{
		M00: a.M00*t.M00 + a.M01*t.M10,
		M01: a.M00*t.M01 + a.M01*t.M11,
		M02: a.M00*t.M02 + a.M01*t.M12 + a.M02,
		M10: a.M10*t.M00 + a.M11*t.M10,
		M11: a.M10*t.M01 + a.M11*t.M11,
		M12: a.M10*t.M02 + a.M11*t.M12 + a.M12,
	}
}

// Apply maps a single point
func (a Affine) Apply(p Point) Point {
	return Point{
		X: a.M00*p.X + a.M01*p.Y + a.M02,
		Y: a.M10*p.X + a.M11*p.Y + a.M12,
	}
}

// Determinant of the linear part
func (a Affine) Determinant() float64 {
	return a.M00*a.M11 - a.M01*a.M10
}

// Inverse returns the inverse transform. ok is false when the linear part is
// singular.
func (a Affine) Inverse() (inv Affine, ok bool) {
	det := a.Determinant()
	if math.Abs(det) < snapEpsilon {
		return Affine{}, false
	}
	inv = Affine{
		M00: a.M11 / det,
		M01: -a.M01 / det,
		M10: -a.M10 / det,
		M11: a.M00 / det,
	}
	inv.M02 = -(inv.M00*a.M02 + inv.M01*a.M12)
	inv.M12 = -(inv.M10*a.M02 + inv.M11*a.M12)
	return inv, true
}

// IsIdentity reports whether a leaves every point unchanged
func (a Affine) IsIdentity() bool {
	return a == Identity()
}

func snap(v float64) float64 {
	if math.Abs(v) < snapEpsilon {
		return 0
	}
	if math.Abs(v-1) < snapEpsilon {
		return 1
	}
	if math.Abs(v+1) < snapEpsilon {
		return -1
	}
	return v
}
