package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/df07/go-scene-preview/pkg/core"
	"gopkg.in/yaml.v3"
)

// Pos is a position or direction written as "x, y, z"
type Pos struct {
	X, Y, Z float64
}

// NewPos creates a new Pos
func NewPos(x, y, z float64) Pos { return Pos{X: x, Y: y, Z: z} }

// Vec3 converts to an engine vector
func (p Pos) Vec3() core.Vec3 { return core.NewVec3(p.X, p.Y, p.Z) }

// UnmarshalYAML accepts "x, y, z" or a three element sequence
func (p *Pos) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseTriple(node, "position", [3]string{"x", "y", "z"})
	if err != nil {
		return err
	}
	p.X, p.Y, p.Z = v[0], v[1], v[2]
	return nil
}

// MarshalYAML writes the "x, y, z" form
func (p Pos) MarshalYAML() (any, error) {
	return formatTriple(p.X, p.Y, p.Z), nil
}

// Rgb is a linear color written as "r, g, b". Light colors may exceed 1.
type Rgb struct {
	R, G, B float64
}

// NewRgb creates a new Rgb
func NewRgb(r, g, b float64) Rgb { return Rgb{R: r, G: g, B: b} }

// White is the default albedo
var White = NewRgb(1, 1, 1)

// Vec3 converts to an engine color
func (c Rgb) Vec3() core.Vec3 { return core.NewVec3(c.R, c.G, c.B) }

// UnmarshalYAML accepts "r, g, b" or a three element sequence
func (c *Rgb) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseTriple(node, "color", [3]string{"r", "g", "b"})
	if err != nil {
		return err
	}
	c.R, c.G, c.B = v[0], v[1], v[2]
	return nil
}

// MarshalYAML writes the "r, g, b" form
func (c Rgb) MarshalYAML() (any, error) {
	return formatTriple(c.R, c.G, c.B), nil
}

func parseTriple(node *yaml.Node, kind string, names [3]string) ([3]float64, error) {
	var out [3]float64
	var parts []string

	switch node.Kind {
	case yaml.ScalarNode:
		parts = strings.Split(node.Value, ",")
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return out, schemaErrorAt(item, kind, ErrInvalidValue, "components must be numbers")
			}
			parts = append(parts, item.Value)
		}
	default:
		return out, schemaErrorAt(node, kind, ErrInvalidValue,
			"expected %q, like \"1, 2, 3\"", strings.Join(names[:], ", "))
	}

	if len(parts) > 3 {
		return out, schemaErrorAt(node, kind, ErrInvalidValue, "expected 3 components, got %d", len(parts))
	}
	for i, name := range names {
		if i >= len(parts) || strings.TrimSpace(parts[i]) == "" {
			return out, schemaErrorAt(node, kind, ErrInvalidValue, "missing component %s", name)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return out, schemaErrorAt(node, kind, ErrInvalidValue, "component %s: %q is not a number", name, strings.TrimSpace(parts[i]))
		}
		if err := finite(name, v); err != nil {
			return out, schemaErrorAt(node, kind, ErrOutOfRange, "%v", err)
		}
		out[i] = v
	}
	return out, nil
}

// finite rejects NaN and infinities, which pass every range comparison
func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return outOfRange(field, "must be a finite number, got %g", v)
	}
	return nil
}

// decodeFinite decodes a scalar number for kind, rejecting NaN and infinities
func decodeFinite(node *yaml.Node, kind string, out *float64) error {
	var v float64
	if err := node.Decode(&v); err != nil {
		return err
	}
	if err := finite(kind, v); err != nil {
		return schemaErrorAt(node, kind, ErrOutOfRange, "%v", err)
	}
	*out = v
	return nil
}

func formatTriple(a, b, c float64) string {
	return fmt.Sprintf("%s, %s, %s", formatFloat(a), formatFloat(b), formatFloat(c))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
