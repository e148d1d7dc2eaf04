package loaders

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareVertices are 4 vertices forming a unit square facing +Z
var squareVertices = []struct {
	x, y, z    float32
	nx, ny, nz float32
}{
	{0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 1},
	{1, 1, 0, 0, 0, 1},
	{0, 1, 0, 0, 0, 1},
}

// binaryPLY builds a binary PLY with the square as one quad and one triangle face
func binaryPLY(t *testing.T, order binary.ByteOrder, includeNormals bool) []byte {
	var buf bytes.Buffer
	format := "binary_little_endian"
	if order == binary.BigEndian {
		format = "binary_big_endian"
	}
	buf.WriteString("ply\nformat " + format + " 1.0\ncomment test square\n")
	buf.WriteString("element vertex 4\nproperty float x\nproperty float y\nproperty float z\n")
	if includeNormals {
		buf.WriteString("property float nx\nproperty float ny\nproperty float nz\n")
	}
	buf.WriteString("element face 2\nproperty list uchar int vertex_indices\nproperty uchar flags\n")
	buf.WriteString("element edge 1\nproperty int vertex1\nproperty int vertex2\n")
	buf.WriteString("end_header\n")

	write := func(v any) { require.NoError(t, binary.Write(&buf, order, v)) }
	for _, v := range squareVertices {
		write([]float32{v.x, v.y, v.z})
		if includeNormals {
			write([]float32{v.nx, v.ny, v.nz})
		}
	}
	write(uint8(4))
	write([]int32{0, 1, 2, 3})
	write(uint8(7))
	write(uint8(3))
	write([]int32{0, 2, 1})
	write(uint8(0))
	write([]int32{0, 1})
	return buf.Bytes()
}

func TestParsePLY_Binary(t *testing.T) {
	tests := []struct {
		name    string
		order   binary.ByteOrder
		normals bool
	}{
		{"little endian", binary.LittleEndian, false},
		{"little endian with normals", binary.LittleEndian, true},
		{"big endian with normals", binary.BigEndian, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mesh, err := ParsePLY(bytes.NewReader(binaryPLY(t, tt.order, tt.normals)))
			require.NoError(t, err)

			require.Len(t, mesh.Vertices, 4)
			assert.Equal(t, core.NewVec3(1, 1, 0), mesh.Vertices[2])
			assert.Equal(t, []int{0, 1, 2, 0, 2, 3, 0, 2, 1}, mesh.Faces)
			assert.Equal(t, 3, mesh.TriangleCount())
			assert.Nil(t, mesh.UVs)
			if tt.normals {
				require.Len(t, mesh.Normals, 4)
				assert.Equal(t, core.NewVec3(0, 0, 1), mesh.Normals[0])
			} else {
				assert.Nil(t, mesh.Normals)
			}
		})
	}
}

func TestParsePLY_ASCII(t *testing.T) {
	data := `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
property float u
property float v
element face 1
property list uchar uint vertex_indices
end_header
0 0 0 0 0
1 0 0 1 0
0 1 0 0 1
3 0 1 2
`
	mesh, err := ParsePLY(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, mesh.Faces)
	require.Len(t, mesh.UVs, 3)
	assert.Equal(t, core.NewVec2(0, 1), mesh.UVs[2])
}

func TestParsePLY_Errors(t *testing.T) {
	header := "ply\nformat ascii 1.0\nelement vertex 3\nproperty float x\nproperty float y\nproperty float z\n"
	tests := []struct {
		name string
		data string
	}{
		{"not ply", "solid cube\n"},
		{"missing end_header", header},
		{"unknown format", strings.Replace(header, "ascii", "binary_middle_endian", 1) + "end_header\n"},
		{"unknown type", header + "property quad w\nend_header\n"},
		{"truncated data", header + "element face 1\nproperty list uchar int vertex_indices\nend_header\n0 0 0\n1 0 0\n"},
		{"index out of range", header + "element face 1\nproperty list uchar int vertex_indices\nend_header\n0 0 0 1 0 0 0 1 0 3 0 1 5\n"},
		{"no faces", header + "end_header\n0 0 0 1 0 0 0 1 0\n"},
		{"no position", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float q\nelement face 0\nproperty list uchar int vertex_indices\nend_header\n1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePLY(strings.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadPLY_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "square.ply")
	require.NoError(t, os.WriteFile(path, binaryPLY(t, binary.LittleEndian, true), 0o644))

	mesh, err := LoadPLY(path)
	require.NoError(t, err)
	assert.Equal(t, 3, mesh.TriangleCount())

	_, err = LoadPLY(filepath.Join(t.TempDir(), "missing.ply"))
	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestParsePLYProperty(t *testing.T) {
	prop, err := parsePLYProperty([]string{"list", "uchar", "int", "vertex_indices"})
	require.NoError(t, err)
	assert.Equal(t, PLYProperty{Name: "vertex_indices", IsList: true, ListType: "uchar", DataType: "int"}, prop)

	prop, err = parsePLYProperty([]string{"double", "x"})
	require.NoError(t, err)
	assert.Equal(t, PLYProperty{Name: "x", Type: "double"}, prop)

	_, err = parsePLYProperty([]string{"list", "uchar"})
	assert.Error(t, err)
}

func TestPLYTypeSize(t *testing.T) {
	tests := map[string]int{
		"char": 1, "uchar": 1, "int8": 1, "uint8": 1,
		"short": 2, "ushort": 2, "int16": 2, "uint16": 2,
		"int": 4, "uint": 4, "float": 4, "float32": 4,
		"double": 8, "float64": 8,
		"string": 0,
	}
	for dataType, size := range tests {
		assert.Equal(t, size, plyTypeSize(dataType), dataType)
	}
}
