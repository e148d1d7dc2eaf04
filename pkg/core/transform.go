package core

import "math"

// Transform is an affine transformation stored as a 3x4 row-major matrix.
// The last column is the translation.
type Transform struct {
	m [3][4]float64
}

// Identity returns the transform that leaves points unchanged
func Identity() Transform {
	return Transform{m: [3][4]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}}
}

// Translate returns a translation by offset
func Translate(offset Vec3) Transform {
	t := Identity()
	t.m[0][3], t.m[1][3], t.m[2][3] = offset.X, offset.Y, offset.Z
	return t
}

// Scale returns a uniform scale around the origin
func Scale(factor float64) Transform {
	return Transform{m: [3][4]float64{
		{factor, 0, 0, 0},
		{0, factor, 0, 0},
		{0, 0, factor, 0},
	}}
}

// RotateX returns a rotation around the X axis by degrees
func RotateX(degrees float64) Transform {
	s, c := math.Sincos(degrees * math.Pi / 180)
	return Transform{m: [3][4]float64{
		{1, 0, 0, 0},
		{0, c, -s, 0},
		{0, s, c, 0},
	}}
}

// RotateY returns a rotation around the Y axis by degrees
func RotateY(degrees float64) Transform {
	s, c := math.Sincos(degrees * math.Pi / 180)
	return Transform{m: [3][4]float64{
		{c, 0, s, 0},
		{0, 1, 0, 0},
		{-s, 0, c, 0},
	}}
}

// RotateZ returns a rotation around the Z axis by degrees
func RotateZ(degrees float64) Transform {
	s, c := math.Sincos(degrees * math.Pi / 180)
	return Transform{m: [3][4]float64{
		{c, -s, 0, 0},
		{s, c, 0, 0},
		{0, 0, 1, 0},
	}}
}

// Then returns the transform that applies t first and next afterwards
func (t Transform) Then(next Transform) Transform {
	var r Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			sum := next.m[i][0]*t.m[0][j] + next.m[i][1]*t.m[1][j] + next.m[i][2]*t.m[2][j]
			if j == 3 {
				sum += next.m[i][3]
			}
			r.m[i][j] = sum
		}
	}
	return r
}

// Point transforms a position
func (t Transform) Point(p Vec3) Vec3 {
	return Vec3{
		X: t.m[0][0]*p.X + t.m[0][1]*p.Y + t.m[0][2]*p.Z + t.m[0][3],
		Y: t.m[1][0]*p.X + t.m[1][1]*p.Y + t.m[1][2]*p.Z + t.m[1][3],
		Z: t.m[2][0]*p.X + t.m[2][1]*p.Y + t.m[2][2]*p.Z + t.m[2][3],
	}
}

// Vector transforms a direction, ignoring translation
func (t Transform) Vector(v Vec3) Vec3 {
	return Vec3{
		X: t.m[0][0]*v.X + t.m[0][1]*v.Y + t.m[0][2]*v.Z,
		Y: t.m[1][0]*v.X + t.m[1][1]*v.Y + t.m[1][2]*v.Z,
		Z: t.m[2][0]*v.X + t.m[2][1]*v.Y + t.m[2][2]*v.Z,
	}
}

// Normal transforms a surface normal using the inverse transpose of the linear part
func (t Transform) Normal(n Vec3) Vec3 {
	a := t.m
	// cofactor matrix equals the inverse transpose scaled by the determinant
	c := [3][3]float64{
		{a[1][1]*a[2][2] - a[1][2]*a[2][1], a[1][2]*a[2][0] - a[1][0]*a[2][2], a[1][0]*a[2][1] - a[1][1]*a[2][0]},
		{a[0][2]*a[2][1] - a[0][1]*a[2][2], a[0][0]*a[2][2] - a[0][2]*a[2][0], a[0][1]*a[2][0] - a[0][0]*a[2][1]},
		{a[0][1]*a[1][2] - a[0][2]*a[1][1], a[0][2]*a[1][0] - a[0][0]*a[1][2], a[0][0]*a[1][1] - a[0][1]*a[1][0]},
	}
	out := Vec3{
		X: c[0][0]*n.X + c[0][1]*n.Y + c[0][2]*n.Z,
		Y: c[1][0]*n.X + c[1][1]*n.Y + c[1][2]*n.Z,
		Z: c[2][0]*n.X + c[2][1]*n.Y + c[2][2]*n.Z,
	}
	if t.Determinant() < 0 {
		out = out.Negate()
	}
	return out.Normalize()
}

// Determinant returns the determinant of the linear part
func (t Transform) Determinant() float64 {
	a := t.m
	return a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
}

// IsIdentity reports whether t leaves points unchanged
func (t Transform) IsIdentity() bool {
	return t == Identity()
}
