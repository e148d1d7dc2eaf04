package core

import (
	"math"
	"math/rand"
)

// RandomCosineDirection generates a cosine-weighted random direction in the hemisphere around normal
func RandomCosineDirection(normal Vec3, random *rand.Rand) Vec3 {
	a := 2.0 * math.Pi * random.Float64()
	z := random.Float64()
	r := math.Sqrt(z)

	x := r * math.Cos(a)
	y := r * math.Sin(a)
	zCoord := math.Sqrt(1.0 - z)

	tangent, bitangent := OrthonormalBasis(normal)
	return tangent.Multiply(x).Add(bitangent.Multiply(y)).Add(normal.Multiply(zCoord))
}

// OrthonormalBasis returns two unit vectors perpendicular to n and to each other
func OrthonormalBasis(n Vec3) (Vec3, Vec3) {
	helper := NewVec3(1, 0, 0)
	if math.Abs(n.X) > 0.9 {
		helper = NewVec3(0, 1, 0)
	}
	tangent := helper.Cross(n).Normalize()
	return tangent, n.Cross(tangent)
}

// RandomUnitVector returns a uniformly distributed direction
func RandomUnitVector(random *rand.Rand) Vec3 {
	z := 2*random.Float64() - 1
	a := 2 * math.Pi * random.Float64()
	r := math.Sqrt(1 - z*z)
	return NewVec3(r*math.Cos(a), r*math.Sin(a), z)
}

// RandomInUnitSphere returns a point inside the unit sphere
func RandomInUnitSphere(random *rand.Rand) Vec3 {
	for {
		p := NewVec3(2*random.Float64()-1, 2*random.Float64()-1, 2*random.Float64()-1)
		if p.LengthSquared() < 1 {
			return p
		}
	}
}

// RandomInUnitDisk generates a random point in the unit disk on the XY plane (for depth of field)
func RandomInUnitDisk(random *rand.Rand) Vec3 {
	for {
		p := NewVec3(2*random.Float64()-1, 2*random.Float64()-1, 0)
		if p.Dot(p) < 1.0 {
			return p
		}
	}
}
