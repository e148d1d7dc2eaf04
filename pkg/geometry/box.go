package geometry

import (
	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/df07/go-scene-preview/pkg/material"
)

// Box represents a box made up of 6 quads
type Box struct {
	Material material.Material // Material for all faces
	faces    [6]*Quad          // The 6 quad faces
	bbox     core.AABB         // Cached bounding box
}

// NewBox creates an axis-aligned box between corners a and b
func NewBox(a, b core.Vec3, material material.Material) *Box {
	return NewTransformedBox(a, b, material, core.Identity())
}

// NewTransformedBox creates the box between corners a and b and then moves it with transform
func NewTransformedBox(a, b core.Vec3, material material.Material, transform core.Transform) *Box {
	box := &Box{Material: material}
	box.generateFaces(a.Min(b), a.Max(b), transform)
	return box
}

// generateFaces creates the 6 quad faces of the box
func (b *Box) generateFaces(lo, hi core.Vec3, transform core.Transform) {
	dx := core.NewVec3(hi.X-lo.X, 0, 0)
	dy := core.NewVec3(0, hi.Y-lo.Y, 0)
	dz := core.NewVec3(0, 0, hi.Z-lo.Z)

	// Each face is a corner and two edges ordered so U × V points outwards
	faces := [6][3]core.Vec3{
		// front (Z+), back (Z-)
		{core.NewVec3(lo.X, lo.Y, hi.Z), dx, dy},
		{core.NewVec3(hi.X, lo.Y, lo.Z), dx.Negate(), dy},
		// right (X+), left (X-)
		{core.NewVec3(hi.X, lo.Y, hi.Z), dz.Negate(), dy},
		{lo, dz, dy},
		// top (Y+), bottom (Y-)
		{core.NewVec3(lo.X, hi.Y, hi.Z), dx, dz.Negate()},
		{lo, dx, dz},
	}

	var corners []core.Vec3
	for i, f := range faces {
		b.faces[i] = NewTransformedQuad(f[0], f[1], f[2], b.Material, transform)
		q := b.faces[i]
		corners = append(corners, q.Corner, q.Corner.Add(q.U), q.Corner.Add(q.V), q.Corner.Add(q.U).Add(q.V))
	}
	b.bbox = core.NewAABBFromPoints(corners...).Pad(boxPadding)
}

// Hit tests if a ray intersects with any face of the box
func (b *Box) Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	var closestHit *material.HitRecord
	closestT := tMax

	for _, face := range b.faces {
		if hit, isHit := face.Hit(ray, tMin, closestT); isHit {
			closestT = hit.T
			closestHit = hit
		}
	}

	return closestHit, closestHit != nil
}

// BoundingBox returns the axis-aligned bounding box for this box
func (b *Box) BoundingBox() core.AABB {
	return b.bbox
}
