package geometry

import (
	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/df07/go-scene-preview/pkg/material"
)

// Triangle represents a single triangle defined by three vertices
type Triangle struct {
	V0, V1, V2 core.Vec3         // The three vertices
	Material   material.Material // Material of the triangle
	normal     core.Vec3         // Cached geometric normal
	normals    *[3]core.Vec3     // Optional vertex normals for smooth shading
	uvs        *[3]core.Vec2     // Optional vertex texture coordinates
	bbox       core.AABB         // Cached bounding box
}

// NewTriangle creates a new triangle from three vertices
func NewTriangle(v0, v1, v2 core.Vec3, material material.Material) *Triangle {
	t := &Triangle{
		V0:       v0,
		V1:       v1,
		V2:       v2,
		Material: material,
		normal:   v1.Subtract(v0).Cross(v2.Subtract(v0)).Normalize(),
	}
	t.bbox = core.NewAABBFromPoints(v0, v1, v2).Pad(boxPadding)
	return t
}

// WithVertexNormals enables smooth shading by interpolating the given normals
func (t *Triangle) WithVertexNormals(n0, n1, n2 core.Vec3) *Triangle {
	t.normals = &[3]core.Vec3{n0.Normalize(), n1.Normalize(), n2.Normalize()}
	return t
}

// WithUVs sets the texture coordinates of the vertices
func (t *Triangle) WithUVs(uv0, uv1, uv2 core.Vec2) *Triangle {
	t.uvs = &[3]core.Vec2{uv0, uv1, uv2}
	return t
}

// Hit tests if a ray intersects with the triangle using the Möller-Trumbore algorithm
func (t *Triangle) Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	const epsilon = 1e-12

	edge1 := t.V1.Subtract(t.V0)
	edge2 := t.V2.Subtract(t.V0)

	// If determinant is near zero, ray lies in plane of triangle
	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)
	if a > -epsilon && a < epsilon {
		return nil, false
	}

	f := 1.0 / a
	s := ray.Origin.Subtract(t.V0)
	u := f * s.Dot(h)
	if u < 0.0 || u > 1.0 {
		return nil, false
	}

	q := s.Cross(edge1)
	v := f * ray.Direction.Dot(q)
	if v < 0.0 || u+v > 1.0 {
		return nil, false
	}

	tHit := f * edge2.Dot(q)
	if tHit < tMin || tHit > tMax {
		return nil, false
	}

	hitRecord := &material.HitRecord{
		T:        tHit,
		Point:    ray.At(tHit),
		UV:       core.NewVec2(u, v),
		Material: t.Material,
	}

	w := 1 - u - v
	if t.uvs != nil {
		hitRecord.UV = t.uvs[0].Multiply(w).Add(t.uvs[1].Multiply(u)).Add(t.uvs[2].Multiply(v))
	}

	hitRecord.SetFaceNormal(ray, t.normal)
	if t.normals != nil {
		shading := t.normals[0].Multiply(w).Add(t.normals[1].Multiply(u)).Add(t.normals[2].Multiply(v)).Normalize()
		// Keep the shading normal on the side the ray arrived from
		if shading.Dot(hitRecord.Normal) < 0 {
			shading = shading.Negate()
		}
		hitRecord.Normal = shading
	}

	return hitRecord, true
}

// BoundingBox returns the axis-aligned bounding box for this triangle
func (t *Triangle) BoundingBox() core.AABB {
	return t.bbox
}

// GetNormal returns the triangle's geometric normal vector
func (t *Triangle) GetNormal() core.Vec3 {
	return t.normal
}
