package loaders

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/df07/go-scene-preview/pkg/core"
)

// PLYHeader represents the parsed header information from a PLY file
type PLYHeader struct {
	Format   string // "binary_little_endian", "binary_big_endian", or "ascii"
	Version  string // Usually "1.0"
	Elements []PLYElement
}

// PLYElement is an element declaration with its properties, in file order
type PLYElement struct {
	Name       string
	Count      int
	Properties []PLYProperty
}

// PLYProperty represents a property definition in the PLY header
type PLYProperty struct {
	Name     string
	Type     string
	IsList   bool
	ListType string // For list properties, the type of the count
	DataType string // For list properties, the type of the data
}

// LoadPLY loads an ASCII or binary PLY file
func LoadPLY(filename string) (*Mesh, error) {
	startTime := time.Now()

	file, err := os.Open(filename)
	if err != nil {
		return nil, loadError(filename, err)
	}
	defer file.Close()

	mesh, err := ParsePLY(file)
	if err != nil {
		return nil, loadError(filename, err)
	}

	slog.Debug("loaded PLY model", "file", filename, "vertices", len(mesh.Vertices),
		"triangles", mesh.TriangleCount(), "elapsed", time.Since(startTime))
	return mesh, nil
}

// ParsePLY reads PLY data. Polygons are fan triangulated. Elements other than
// vertex and face are skipped.
func ParsePLY(r io.Reader) (*Mesh, error) {
	reader := bufio.NewReaderSize(r, 1024*1024)

	header, err := parsePLYHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PLY header: %w", err)
	}

	var values plyValueReader
	switch header.Format {
	case "ascii":
		scanner := bufio.NewScanner(reader)
		scanner.Split(bufio.ScanWords)
		values = &asciiPLYReader{scanner: scanner}
	case "binary_little_endian":
		values = &binaryPLYReader{reader: reader, order: binary.LittleEndian}
	case "binary_big_endian":
		values = &binaryPLYReader{reader: reader, order: binary.BigEndian}
	default:
		return nil, fmt.Errorf("%w: PLY format %q", ErrUnsupportedFormat, header.Format)
	}

	mesh := &Mesh{}
	for _, element := range header.Elements {
		switch element.Name {
		case "vertex":
			err = readPLYVertices(values, element, mesh)
		case "face":
			err = readPLYFaces(values, element, mesh)
		default:
			err = skipPLYElement(values, element)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read PLY %s data: %w", element.Name, err)
		}
	}

	if len(mesh.Faces) == 0 {
		return nil, errors.New("no faces found")
	}
	for _, index := range mesh.Faces {
		if index < 0 || index >= len(mesh.Vertices) {
			return nil, fmt.Errorf("face index %d out of range for %d vertices", index, len(mesh.Vertices))
		}
	}
	return mesh, nil
}

// parsePLYHeader parses the header up to and including end_header
func parsePLYHeader(reader *bufio.Reader) (*PLYHeader, error) {
	header := &PLYHeader{}
	var current *PLYElement

	for lineNumber := 1; ; lineNumber++ {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("missing end_header: %w", err)
		}
		line = strings.TrimSpace(line)

		if lineNumber == 1 {
			if line != "ply" {
				return nil, errors.New("not a PLY file")
			}
			continue
		}
		if line == "end_header" {
			break
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "format":
			if len(parts) < 3 {
				return nil, fmt.Errorf("line %d: invalid format line", lineNumber)
			}
			header.Format = parts[1]
			header.Version = parts[2]
		case "comment", "obj_info":
			// Ignore comments
		case "element":
			if len(parts) < 3 {
				return nil, fmt.Errorf("line %d: invalid element line", lineNumber)
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("line %d: invalid element count: %s", lineNumber, parts[2])
			}
			header.Elements = append(header.Elements, PLYElement{Name: parts[1], Count: count})
			current = &header.Elements[len(header.Elements)-1]
		case "property":
			if current == nil {
				return nil, fmt.Errorf("line %d: property before any element", lineNumber)
			}
			prop, err := parsePLYProperty(parts[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNumber, err)
			}
			current.Properties = append(current.Properties, prop)
		default:
			return nil, fmt.Errorf("line %d: unknown header keyword %q", lineNumber, parts[0])
		}
	}

	if header.Format == "" {
		return nil, errors.New("missing format line")
	}
	return header, nil
}

// parsePLYProperty parses a property line from the PLY header
func parsePLYProperty(parts []string) (PLYProperty, error) {
	if len(parts) < 2 {
		return PLYProperty{}, fmt.Errorf("invalid property definition")
	}

	prop := PLYProperty{}

	if parts[0] == "list" {
		if len(parts) < 4 {
			return PLYProperty{}, fmt.Errorf("invalid list property definition")
		}
		prop.IsList = true
		prop.ListType = parts[1]
		prop.DataType = parts[2]
		prop.Name = parts[3]
		if plyTypeSize(prop.ListType) == 0 || plyTypeSize(prop.DataType) == 0 {
			return PLYProperty{}, fmt.Errorf("unsupported list property types %s %s", prop.ListType, prop.DataType)
		}
	} else {
		prop.Type = parts[0]
		prop.Name = parts[1]
		if plyTypeSize(prop.Type) == 0 {
			return PLYProperty{}, fmt.Errorf("unsupported property type %s", prop.Type)
		}
	}

	return prop, nil
}

// plyTypeSize returns the binary size of a scalar type, 0 for unknown types
func plyTypeSize(dataType string) int {
	switch dataType {
	case "char", "int8", "uchar", "uint8":
		return 1
	case "short", "int16", "ushort", "uint16":
		return 2
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	default:
		return 0
	}
}

// vertex property slots
const (
	plyX = iota
	plyY
	plyZ
	plyNX
	plyNY
	plyNZ
	plyU
	plyV
	plySlotCount
)

func plyVertexSlot(name string) int {
	switch name {
	case "x":
		return plyX
	case "y":
		return plyY
	case "z":
		return plyZ
	case "nx":
		return plyNX
	case "ny":
		return plyNY
	case "nz":
		return plyNZ
	case "u", "s", "texture_u":
		return plyU
	case "v", "t", "texture_v":
		return plyV
	default:
		return -1
	}
}

func readPLYVertices(values plyValueReader, element PLYElement, mesh *Mesh) error {
	slots := make([]int, len(element.Properties))
	var present [plySlotCount]bool
	for i, prop := range element.Properties {
		slots[i] = plyVertexSlot(prop.Name)
		if slots[i] >= 0 && !prop.IsList {
			present[slots[i]] = true
		}
	}
	if !present[plyX] || !present[plyY] || !present[plyZ] {
		return errors.New("vertex element needs x, y and z properties")
	}
	hasNormals := present[plyNX] && present[plyNY] && present[plyNZ]
	hasUVs := present[plyU] && present[plyV]

	mesh.Vertices = make([]core.Vec3, 0, element.Count)
	if hasNormals {
		mesh.Normals = make([]core.Vec3, 0, element.Count)
	}
	if hasUVs {
		mesh.UVs = make([]core.Vec2, 0, element.Count)
	}

	var row [plySlotCount]float64
	for i := 0; i < element.Count; i++ {
		for j, prop := range element.Properties {
			if prop.IsList {
				if err := skipPLYList(values, prop); err != nil {
					return fmt.Errorf("vertex %d: %w", i, err)
				}
				continue
			}
			value, err := values.scalar(prop.Type)
			if err != nil {
				return fmt.Errorf("vertex %d: %w", i, err)
			}
			if slots[j] >= 0 {
				row[slots[j]] = value
			}
		}
		mesh.Vertices = append(mesh.Vertices, core.NewVec3(row[plyX], row[plyY], row[plyZ]))
		if hasNormals {
			mesh.Normals = append(mesh.Normals, core.NewVec3(row[plyNX], row[plyNY], row[plyNZ]))
		}
		if hasUVs {
			mesh.UVs = append(mesh.UVs, core.NewVec2(row[plyU], row[plyV]))
		}
	}
	return nil
}

func readPLYFaces(values plyValueReader, element PLYElement, mesh *Mesh) error {
	mesh.Faces = make([]int, 0, element.Count*3)
	var polygon []int

	for i := 0; i < element.Count; i++ {
		for _, prop := range element.Properties {
			isIndices := prop.IsList && (prop.Name == "vertex_indices" || prop.Name == "vertex_index")
			if !isIndices {
				if err := skipPLYProperty(values, prop); err != nil {
					return fmt.Errorf("face %d: %w", i, err)
				}
				continue
			}

			count, err := values.scalar(prop.ListType)
			if err != nil {
				return fmt.Errorf("face %d: %w", i, err)
			}
			if count < 3 {
				return fmt.Errorf("face %d has %d vertices", i, int(count))
			}
			polygon = polygon[:0]
			for k := 0; k < int(count); k++ {
				index, err := values.scalar(prop.DataType)
				if err != nil {
					return fmt.Errorf("face %d: %w", i, err)
				}
				polygon = append(polygon, int(index))
			}
			mesh.Faces = fanTriangulate(mesh.Faces, polygon)
		}
	}
	return nil
}

func skipPLYElement(values plyValueReader, element PLYElement) error {
	for i := 0; i < element.Count; i++ {
		for _, prop := range element.Properties {
			if err := skipPLYProperty(values, prop); err != nil {
				return err
			}
		}
	}
	return nil
}

func skipPLYProperty(values plyValueReader, prop PLYProperty) error {
	if prop.IsList {
		return skipPLYList(values, prop)
	}
	_, err := values.scalar(prop.Type)
	return err
}

func skipPLYList(values plyValueReader, prop PLYProperty) error {
	count, err := values.scalar(prop.ListType)
	if err != nil {
		return err
	}
	for k := 0; k < int(count); k++ {
		if _, err := values.scalar(prop.DataType); err != nil {
			return err
		}
	}
	return nil
}

// plyValueReader reads one scalar of a PLY type as float64
type plyValueReader interface {
	scalar(dataType string) (float64, error)
}

// asciiPLYReader reads whitespace separated values
type asciiPLYReader struct {
	scanner *bufio.Scanner
}

func (a *asciiPLYReader) scalar(dataType string) (float64, error) {
	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	value, err := strconv.ParseFloat(a.scanner.Text(), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", dataType, a.scanner.Text())
	}
	return value, nil
}

// binaryPLYReader reads fixed size values in the given byte order
type binaryPLYReader struct {
	reader *bufio.Reader
	order  binary.ByteOrder
	buf    [8]byte
}

func (b *binaryPLYReader) scalar(dataType string) (float64, error) {
	size := plyTypeSize(dataType)
	if size == 0 {
		return 0, fmt.Errorf("unsupported data type: %s", dataType)
	}
	data := b.buf[:size]
	if _, err := io.ReadFull(b.reader, data); err != nil {
		return 0, err
	}

	switch dataType {
	case "char", "int8":
		return float64(int8(data[0])), nil
	case "uchar", "uint8":
		return float64(data[0]), nil
	case "short", "int16":
		return float64(int16(b.order.Uint16(data))), nil
	case "ushort", "uint16":
		return float64(b.order.Uint16(data)), nil
	case "int", "int32":
		return float64(int32(b.order.Uint32(data))), nil
	case "uint", "uint32":
		return float64(b.order.Uint32(data)), nil
	case "float", "float32":
		return float64(math.Float32frombits(b.order.Uint32(data))), nil
	default:
		return math.Float64frombits(b.order.Uint64(data)), nil
	}
}
