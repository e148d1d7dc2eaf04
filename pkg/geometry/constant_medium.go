package geometry

import (
	"math"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/df07/go-scene-preview/pkg/material"
)

// ConstantMedium is a volume of uniform density inside a closed boundary shape.
// Rays passing through it scatter at an exponentially distributed distance.
type ConstantMedium struct {
	Boundary      Shape
	PhaseFunction material.Material
	negInvDensity float64
}

// NewConstantMedium creates a fog volume with the given density and color
func NewConstantMedium(boundary Shape, density float64, color core.Vec3) *ConstantMedium {
	return &ConstantMedium{
		Boundary:      boundary,
		PhaseFunction: material.NewIsotropic(color),
		negInvDensity: -1 / density,
	}
}

// Hit finds where the ray scatters inside the volume, if it does
func (c *ConstantMedium) Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	enter, ok := c.Boundary.Hit(ray, math.Inf(-1), math.Inf(1))
	if !ok {
		return nil, false
	}
	exit, ok := c.Boundary.Hit(ray, enter.T+1e-4, math.Inf(1))
	if !ok {
		return nil, false
	}

	t0, t1 := max(enter.T, tMin), min(exit.T, tMax)
	if t0 >= t1 {
		return nil, false
	}
	t0 = max(t0, 0)

	rayLength := ray.Direction.Length()
	distanceInside := (t1 - t0) * rayLength
	hitDistance := c.negInvDensity * math.Log(rayUniform(ray))
	if hitDistance > distanceInside {
		return nil, false
	}

	t := t0 + hitDistance/rayLength
	return &material.HitRecord{
		T:         t,
		Point:     ray.At(t),
		Normal:    core.NewVec3(1, 0, 0), // arbitrary
		FrontFace: true,
		Material:  c.PhaseFunction,
	}, true
}

// BoundingBox returns the bounding box of the boundary
func (c *ConstantMedium) BoundingBox() core.AABB {
	return c.Boundary.BoundingBox()
}

// rayUniform derives a number in (0, 1) from the ray. Shapes have no random
// source, and scattered rays already carry sampled randomness in their bits.
func rayUniform(ray core.Ray) float64 {
	h := uint64(0x9e3779b97f4a7c15)
	for _, f := range [6]float64{
		ray.Origin.X, ray.Origin.Y, ray.Origin.Z,
		ray.Direction.X, ray.Direction.Y, ray.Direction.Z,
	} {
		h = splitmix64(h ^ math.Float64bits(f))
	}
	return (float64(h>>11) + 0.5) / (1 << 53)
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
