package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/df07/go-scene-preview/pkg/core"
)

// LoadOBJ loads a Wavefront OBJ file together with the MTL libraries it references
func LoadOBJ(filename string) (*Mesh, error) {
	startTime := time.Now()

	file, err := os.Open(filename)
	if err != nil {
		return nil, loadError(filename, err)
	}
	defer file.Close()

	mesh, err := ParseOBJ(file, filepath.Dir(filename))
	if err != nil {
		var nested *LoadError
		if errors.As(err, &nested) {
			return nil, err
		}
		return nil, loadError(filename, err)
	}

	slog.Debug("loaded OBJ model", "file", filename, "vertices", len(mesh.Vertices),
		"triangles", mesh.TriangleCount(), "elapsed", time.Since(startTime))
	return mesh, nil
}

// objVertex identifies a unique position/uv/normal combination, -1 for absent
type objVertex struct {
	v, vt, vn int
}

// objParser accumulates OBJ statements into a Mesh
type objParser struct {
	dir string

	positions []core.Vec3
	uvs       []core.Vec2
	normals   []core.Vec3

	vertexIndex map[objVertex]int
	vertices    []objVertex

	faces         []int
	faceMaterials []int

	materials       []MeshMaterial
	materialIndex   map[string]int
	currentMaterial int
}

// ParseOBJ parses OBJ text. MTL libraries and texture maps are resolved against dir.
func ParseOBJ(r io.Reader, dir string) (*Mesh, error) {
	p := &objParser{
		dir:             dir,
		vertexIndex:     make(map[objVertex]int),
		materialIndex:   make(map[string]int),
		currentMaterial: -1,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if err := p.statement(strings.Fields(line)); err != nil {
			var nested *LoadError
			if errors.As(err, &nested) {
				return nil, err
			}
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading OBJ: %w", err)
	}
	if len(p.faces) == 0 {
		return nil, errors.New("no faces found")
	}
	return p.mesh(), nil
}

func (p *objParser) statement(fields []string) error {
	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3, 3)
		if err != nil {
			return fmt.Errorf("vertex: %w", err)
		}
		p.positions = append(p.positions, core.NewVec3(v[0], v[1], v[2]))
	case "vt":
		v, err := parseFloats(fields[1:], 1, 2)
		if err != nil {
			return fmt.Errorf("texture coordinate: %w", err)
		}
		p.uvs = append(p.uvs, core.NewVec2(v[0], v[1]))
	case "vn":
		v, err := parseFloats(fields[1:], 3, 3)
		if err != nil {
			return fmt.Errorf("normal: %w", err)
		}
		p.normals = append(p.normals, core.NewVec3(v[0], v[1], v[2]))
	case "f":
		return p.face(fields[1:])
	case "mtllib":
		for _, name := range fields[1:] {
			if err := p.loadMTL(name); err != nil {
				return err
			}
		}
	case "usemtl":
		if len(fields) < 2 {
			return errors.New("usemtl without a name")
		}
		index, ok := p.materialIndex[fields[1]]
		if !ok {
			slog.Warn("OBJ references an undeclared material", "material", fields[1])
			index = -1
		}
		p.currentMaterial = index
	}
	// Groups, objects, smoothing and other statements do not affect the mesh
	return nil
}

func (p *objParser) face(tokens []string) error {
	if len(tokens) < 3 {
		return fmt.Errorf("face needs at least 3 vertices, got %d", len(tokens))
	}
	polygon := make([]int, len(tokens))
	for i, token := range tokens {
		key, err := p.parseFaceVertex(token)
		if err != nil {
			return err
		}
		index, ok := p.vertexIndex[key]
		if !ok {
			index = len(p.vertices)
			p.vertexIndex[key] = index
			p.vertices = append(p.vertices, key)
		}
		polygon[i] = index
	}

	before := len(p.faces)
	p.faces = fanTriangulate(p.faces, polygon)
	for i := before; i < len(p.faces); i += 3 {
		p.faceMaterials = append(p.faceMaterials, p.currentMaterial)
	}
	return nil
}

// parseFaceVertex parses "v", "v/vt", "v//vn" or "v/vt/vn"
func (p *objParser) parseFaceVertex(token string) (objVertex, error) {
	parts := strings.Split(token, "/")
	if len(parts) > 3 {
		return objVertex{}, fmt.Errorf("invalid face vertex %q", token)
	}
	key := objVertex{v: -1, vt: -1, vn: -1}
	var err error
	if key.v, err = resolveIndex(parts[0], len(p.positions)); err != nil {
		return key, fmt.Errorf("face vertex %q: %w", token, err)
	}
	if len(parts) > 1 && parts[1] != "" {
		if key.vt, err = resolveIndex(parts[1], len(p.uvs)); err != nil {
			return key, fmt.Errorf("face texture coordinate %q: %w", token, err)
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if key.vn, err = resolveIndex(parts[2], len(p.normals)); err != nil {
			return key, fmt.Errorf("face normal %q: %w", token, err)
		}
	}
	return key, nil
}

// resolveIndex converts a 1-based or negative relative OBJ index to 0-based
func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	default:
		return 0, fmt.Errorf("index %d out of range for %d elements", i, count)
	}
}

func (p *objParser) mesh() *Mesh {
	mesh := &Mesh{
		Vertices:  make([]core.Vec3, len(p.vertices)),
		Faces:     p.faces,
		Materials: p.materials,
	}

	allNormals, anyUVs := true, false
	for _, key := range p.vertices {
		allNormals = allNormals && key.vn >= 0
		anyUVs = anyUVs || key.vt >= 0
	}
	if allNormals {
		mesh.Normals = make([]core.Vec3, len(p.vertices))
	}
	if anyUVs {
		mesh.UVs = make([]core.Vec2, len(p.vertices))
	}

	for i, key := range p.vertices {
		mesh.Vertices[i] = p.positions[key.v]
		if allNormals {
			mesh.Normals[i] = p.normals[key.vn]
		}
		if anyUVs && key.vt >= 0 {
			mesh.UVs[i] = p.uvs[key.vt]
		}
	}

	if len(p.materials) > 0 {
		mesh.FaceMaterials = p.faceMaterials
	}
	return mesh
}

func (p *objParser) loadMTL(name string) error {
	path := resolvePath(p.dir, name)
	file, err := os.Open(path)
	if err != nil {
		return loadError(path, err)
	}
	defer file.Close()

	materials, err := ParseMTL(file, p.dir)
	if err != nil {
		return loadError(path, err)
	}
	for _, m := range materials {
		if _, exists := p.materialIndex[m.Name]; exists {
			continue
		}
		p.materialIndex[m.Name] = len(p.materials)
		p.materials = append(p.materials, m)
	}
	return nil
}

// ParseMTL parses an MTL material library. Texture paths are resolved against dir.
func ParseMTL(r io.Reader, dir string) ([]MeshMaterial, error) {
	var materials []MeshMaterial
	var current *MeshMaterial

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)

		if fields[0] == "newmtl" {
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: newmtl without a name", lineNumber)
			}
			materials = append(materials, MeshMaterial{
				Name:     fields[1],
				Diffuse:  core.Splat(1),
				Dissolve: 1,
				IOR:      1.5,
			})
			current = &materials[len(materials)-1]
			continue
		}
		if current == nil {
			continue
		}

		var err error
		switch fields[0] {
		case "Kd":
			current.Diffuse, err = parseColor(fields[1:])
		case "Ke":
			current.Emission, err = parseColor(fields[1:])
		case "d":
			current.Dissolve, err = parseScalar(fields[1:])
		case "Tr":
			var tr float64
			tr, err = parseScalar(fields[1:])
			current.Dissolve = 1 - tr
		case "Ni":
			current.IOR, err = parseScalar(fields[1:])
		case "map_Kd":
			current.DiffuseMap = resolvePath(dir, fields[len(fields)-1])
		case "norm", "map_Bump", "map_bump", "bump":
			current.NormalMap = resolvePath(dir, fields[len(fields)-1])
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", lineNumber, fields[0], err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading MTL: %w", err)
	}
	return materials, nil
}

func resolvePath(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// parseFloats parses between minCount and maxCount leading values, ignoring
// any extras such as the optional w component. Missing values are 0.
func parseFloats(fields []string, minCount, maxCount int) ([]float64, error) {
	if len(fields) < minCount {
		return nil, fmt.Errorf("expected %d values, got %d", minCount, len(fields))
	}
	values := make([]float64, maxCount)
	for i := 0; i < maxCount && i < len(fields); i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func parseColor(fields []string) (core.Vec3, error) {
	v, err := parseFloats(fields, 1, 3)
	if err != nil {
		return core.Vec3{}, err
	}
	if len(fields) < 3 {
		return core.Splat(v[0]), nil
	}
	return core.NewVec3(v[0], v[1], v[2]), nil
}

func parseScalar(fields []string) (float64, error) {
	v, err := parseFloats(fields, 1, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}
