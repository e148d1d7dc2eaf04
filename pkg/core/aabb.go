package core

import "math"

// AABB is an axis-aligned bounding box
type AABB struct {
	Min Vec3
	Max Vec3
}

// NewAABB creates a new AABB from two opposite corners in any order
func NewAABB(a, b Vec3) AABB {
	return AABB{Min: a.Min(b), Max: a.Max(b)}
}

// NewAABBFromPoints creates an AABB that bounds all given points
func NewAABBFromPoints(points ...Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	box := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box.Min = box.Min.Min(p)
		box.Max = box.Max.Max(p)
	}
	return box
}

// Hit tests a ray against the box using the slab method
func (b AABB) Hit(ray Ray, tMin, tMax float64) bool {
	for axis := 0; axis < 3; axis++ {
		origin := ray.Origin.Axis(axis)
		direction := ray.Direction.Axis(axis)
		lo, hi := b.Min.Axis(axis), b.Max.Axis(axis)

		if math.Abs(direction) < 1e-12 {
			if origin < lo || origin > hi {
				return false
			}
			continue
		}

		inv := 1.0 / direction
		t0 := (lo - origin) * inv
		t1 := (hi - origin) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = max(tMin, t0)
		tMax = min(tMax, t1)
		if tMax < tMin {
			return false
		}
	}
	return true
}

// Union returns the box bounding both boxes
func (b AABB) Union(other AABB) AABB {
	return AABB{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Center returns the center point of the box
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Multiply(0.5)
}

// LongestAxis returns the axis (0=X, 1=Y, 2=Z) with the longest extent
func (b AABB) LongestAxis() int {
	size := b.Max.Subtract(b.Min)
	if size.X > size.Y && size.X > size.Z {
		return 0
	}
	if size.Y > size.Z {
		return 1
	}
	return 2
}

// Pad grows flat dimensions so that planar shapes still have a volume to hit
func (b AABB) Pad(delta float64) AABB {
	grow := func(lo, hi float64) (float64, float64) {
		if hi-lo < delta {
			return lo - delta/2, hi + delta/2
		}
		return lo, hi
	}
	b.Min.X, b.Max.X = grow(b.Min.X, b.Max.X)
	b.Min.Y, b.Max.Y = grow(b.Min.Y, b.Max.Y)
	b.Min.Z, b.Max.Z = grow(b.Min.Z, b.Max.Z)
	return b
}

// Corners returns the eight corners of the box
func (b AABB) Corners() [8]Vec3 {
	var corners [8]Vec3
	for i := range corners {
		corners[i] = Vec3{
			X: pick(i&1 == 0, b.Min.X, b.Max.X),
			Y: pick(i&2 == 0, b.Min.Y, b.Max.Y),
			Z: pick(i&4 == 0, b.Min.Z, b.Max.Z),
		}
	}
	return corners
}

func pick(first bool, a, b float64) float64 {
	if first {
		return a
	}
	return b
}
