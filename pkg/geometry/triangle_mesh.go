package geometry

import (
	"fmt"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/df07/go-scene-preview/pkg/material"
)

// TriangleMesh represents a collection of triangles with efficient ray intersection.
// It uses an internal BVH for fast intersection tests.
type TriangleMesh struct {
	triangles []Shape // Individual triangles as shapes
	bvh       *BVH    // BVH for fast intersection
}

// TriangleMeshOptions contains optional parameters for triangle mesh creation
type TriangleMeshOptions struct {
	Normals   []core.Vec3         // Optional vertex normals, parallel to the vertices
	UVs       []core.Vec2         // Optional vertex texture coordinates, parallel to the vertices
	Materials []material.Material // Optional per-triangle materials, nil entries use the default
	Transform *core.Transform     // Optional transform applied to vertices and normals
}

// NewTriangleMesh creates a new triangle mesh from vertices and face indices.
// Each group of 3 face indices forms a triangle.
func NewTriangleMesh(vertices []core.Vec3, faces []int, defaultMaterial material.Material, options *TriangleMeshOptions) (*TriangleMesh, error) {
	if len(faces)%3 != 0 {
		return nil, fmt.Errorf("face indices must be a multiple of 3, got %d", len(faces))
	}
	numTriangles := len(faces) / 3

	if options == nil {
		options = &TriangleMeshOptions{}
	}
	if options.Normals != nil && len(options.Normals) != len(vertices) {
		return nil, fmt.Errorf("got %d normals for %d vertices", len(options.Normals), len(vertices))
	}
	if options.UVs != nil && len(options.UVs) != len(vertices) {
		return nil, fmt.Errorf("got %d texture coordinates for %d vertices", len(options.UVs), len(vertices))
	}
	if options.Materials != nil && len(options.Materials) != numTriangles {
		return nil, fmt.Errorf("got %d materials for %d triangles", len(options.Materials), numTriangles)
	}

	workingVertices, workingNormals := vertices, options.Normals
	if options.Transform != nil {
		workingVertices = make([]core.Vec3, len(vertices))
		for i, vertex := range vertices {
			workingVertices[i] = options.Transform.Point(vertex)
		}
		if options.Normals != nil {
			workingNormals = make([]core.Vec3, len(options.Normals))
			for i, n := range options.Normals {
				workingNormals[i] = options.Transform.Normal(n)
			}
		}
	}

	triangles := make([]Shape, 0, numTriangles)
	for i := 0; i < numTriangles; i++ {
		i0, i1, i2 := faces[i*3], faces[i*3+1], faces[i*3+2]
		for _, idx := range [3]int{i0, i1, i2} {
			if idx < 0 || idx >= len(workingVertices) {
				return nil, fmt.Errorf("triangle %d: vertex index %d out of range [0, %d)", i, idx, len(workingVertices))
			}
		}

		triangleMaterial := defaultMaterial
		if options.Materials != nil && options.Materials[i] != nil {
			triangleMaterial = options.Materials[i]
		}

		triangle := NewTriangle(workingVertices[i0], workingVertices[i1], workingVertices[i2], triangleMaterial)
		if triangle.GetNormal().NearZero() {
			// Degenerate triangles can never be hit
			continue
		}
		if workingNormals != nil {
			triangle.WithVertexNormals(workingNormals[i0], workingNormals[i1], workingNormals[i2])
		}
		if options.UVs != nil {
			triangle.WithUVs(options.UVs[i0], options.UVs[i1], options.UVs[i2])
		}
		triangles = append(triangles, triangle)
	}

	return &TriangleMesh{
		triangles: triangles,
		bvh:       NewBVH(triangles),
	}, nil
}

// Hit tests if a ray intersects with any triangle in the mesh
func (tm *TriangleMesh) Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	return tm.bvh.Hit(ray, tMin, tMax)
}

// BoundingBox returns the axis-aligned bounding box for the entire mesh
func (tm *TriangleMesh) BoundingBox() core.AABB {
	return tm.bvh.BoundingBox()
}

// GetTriangleCount returns the number of triangles in this mesh
func (tm *TriangleMesh) GetTriangleCount() int {
	return len(tm.triangles)
}
