package loaders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/df07/go-scene-preview/pkg/core"
)

// Mesh is triangle data loaded from a model file
type Mesh struct {
	Vertices      []core.Vec3    // Vertex positions
	Normals       []core.Vec3    // Per-vertex normals, nil when the file has none
	UVs           []core.Vec2    // Per-vertex texture coordinates, nil when the file has none
	Faces         []int          // Vertex indices, 3 per triangle
	FaceMaterials []int          // Per-triangle index into Materials, -1 for none. Nil without materials.
	Materials     []MeshMaterial // Materials declared by the file
}

// MeshMaterial is a material declared inside a model file
type MeshMaterial struct {
	Name       string
	Diffuse    core.Vec3 // Kd
	Emission   core.Vec3 // Ke
	Dissolve   float64   // d, 1 is opaque
	IOR        float64   // Ni
	DiffuseMap string    // map_Kd, resolved against the model folder
	NormalMap  string    // norm or bump, resolved against the model folder
}

// TriangleCount returns the number of triangles in the mesh
func (m *Mesh) TriangleCount() int {
	return len(m.Faces) / 3
}

// LoadMesh loads an OBJ or PLY file, chosen by extension
func LoadMesh(filename string) (*Mesh, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".obj":
		return LoadOBJ(filename)
	case ".ply":
		return LoadPLY(filename)
	default:
		return nil, loadError(filename, fmt.Errorf("%w: expected an .obj or .ply file", ErrUnsupportedFormat))
	}
}

// fanTriangulate appends triangles (0, i, i+1) for a convex polygon
func fanTriangulate(faces []int, polygon []int) []int {
	for i := 1; i+1 < len(polygon); i++ {
		faces = append(faces, polygon[0], polygon[i], polygon[i+1])
	}
	return faces
}
