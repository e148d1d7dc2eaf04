package model

import (
	"errors"
	"path/filepath"

	"github.com/df07/go-scene-preview/pkg/core"
	"gopkg.in/yaml.v3"
)

// Hittable is an object in the world
type Hittable interface{ hittableNode() }

// Sphere is a ball at Center
type Sphere struct {
	Center   Pos               `yaml:"center"`
	Radius   float64           `yaml:"radius"`
	Material Variant[Material] `yaml:"material,omitempty"`
}

// Model is a triangle mesh loaded from the file Name in folder Path. Material
// is used for faces that carry no material of their own.
type Model struct {
	Path            string                    `yaml:"path"`
	Name            string                    `yaml:"name"`
	Material        *Variant[Material]        `yaml:"material,omitempty"`
	Transformations []Variant[Transformation] `yaml:"transformations,omitempty"`
}

// Quad is a parallelogram spanned by U and V from corner Q
type Quad struct {
	Q               Pos                       `yaml:"q"`
	U               Pos                       `yaml:"u"`
	V               Pos                       `yaml:"v"`
	Material        Variant[Material]         `yaml:"material,omitempty"`
	Transformations []Variant[Transformation] `yaml:"transformations,omitempty"`
}

// Box is an axis aligned box between corners A and B, before transformations
type Box struct {
	A               Pos                       `yaml:"a"`
	B               Pos                       `yaml:"b"`
	Material        Variant[Material]         `yaml:"material,omitempty"`
	Transformations []Variant[Transformation] `yaml:"transformations,omitempty"`
}

// ConstantMedium is a box of fog that scatters rays inside its volume
type ConstantMedium struct {
	A       Pos      `yaml:"a"`
	B       Pos      `yaml:"b"`
	Density *float64 `yaml:"density,omitempty"`
	Color   *Rgb     `yaml:"color,omitempty"`
}

func (*Sphere) hittableNode()         {}
func (*Model) hittableNode()          {}
func (*Quad) hittableNode()           {}
func (*Box) hittableNode()            {}
func (*ConstantMedium) hittableNode() {}

// Constant medium defaults
var (
	DefaultMediumDensity = 0.01
	DefaultMediumColor   = NewRgb(0.9, 0.9, 0.9)
)

// MaterialOrDefault returns the declared material, or the default material
func (m *Model) MaterialOrDefault() Material {
	if m.Material == nil || m.Material.empty() {
		return DefaultMaterial()
	}
	return m.Material.Value
}

// DensityOrDefault returns the fog density with the default applied
func (c *ConstantMedium) DensityOrDefault() float64 {
	if c.Density == nil {
		return DefaultMediumDensity
	}
	return *c.Density
}

// ColorOrDefault returns the fog color with the default applied
func (c *ConstantMedium) ColorOrDefault() Rgb {
	if c.Color == nil {
		return DefaultMediumColor
	}
	return *c.Color
}

func (s *Sphere) validate() error {
	if s.Radius <= 0 {
		return outOfRange("radius", "must be positive, got %g", s.Radius)
	}
	return nil
}

// File returns the mesh file path
func (m *Model) File() string { return filepath.Join(m.Path, m.Name) }

func (m *Model) validate() error {
	if m.Path == "" {
		return errors.New("path must not be empty")
	}
	if m.Name == "" {
		return errors.New("name must not be empty")
	}
	return nil
}

func (q *Quad) validate() error {
	if q.U.Vec3().Cross(q.V.Vec3()).NearZero() {
		return outOfRange("v", "u and v must span a parallelogram")
	}
	return nil
}

func (c *ConstantMedium) validate() error {
	if c.DensityOrDefault() <= 0 {
		return outOfRange("density", "must be positive, got %g", c.DensityOrDefault())
	}
	return nil
}

var _ = registerVariants[Hittable]("hittable", nil,
	alt("sphere", &Sphere{}),
	alt("model", &Model{}),
	alt("quad", &Quad{}),
	alt("box", &Box{}),
	alt("constant_medium", &ConstantMedium{}),
)

// Transformation is one step of a transformation list. Steps apply in list order.
type Transformation interface{ transformationNode() }

// Translation moves by Offset
type Translation struct{ Offset Pos }

// Scale scales uniformly by Factor around the origin
type Scale struct{ Factor float64 }

// RotationX rotates around the X axis
type RotationX struct{ Degrees float64 }

// RotationY rotates around the Y axis
type RotationY struct{ Degrees float64 }

// RotationZ rotates around the Z axis
type RotationZ struct{ Degrees float64 }

func (*Translation) transformationNode() {}
func (*Scale) transformationNode()       {}
func (*RotationX) transformationNode()   {}
func (*RotationY) transformationNode()   {}
func (*RotationZ) transformationNode()   {}

func (t *Translation) UnmarshalYAML(node *yaml.Node) error { return t.Offset.UnmarshalYAML(node) }
func (t Translation) MarshalYAML() (any, error)            { return t.Offset.MarshalYAML() }
func (s *Scale) UnmarshalYAML(node *yaml.Node) error       { return decodeFinite(node, "scale", &s.Factor) }
func (s Scale) MarshalYAML() (any, error)                  { return s.Factor, nil }
func (r *RotationX) UnmarshalYAML(node *yaml.Node) error   { return decodeFinite(node, "rotation_x", &r.Degrees) }
func (r RotationX) MarshalYAML() (any, error)              { return r.Degrees, nil }
func (r *RotationY) UnmarshalYAML(node *yaml.Node) error   { return decodeFinite(node, "rotation_y", &r.Degrees) }
func (r RotationY) MarshalYAML() (any, error)              { return r.Degrees, nil }
func (r *RotationZ) UnmarshalYAML(node *yaml.Node) error   { return decodeFinite(node, "rotation_z", &r.Degrees) }
func (r RotationZ) MarshalYAML() (any, error)              { return r.Degrees, nil }

func (s *Scale) validate() error {
	if s.Factor == 0 {
		return outOfRange("scale", "must not be zero")
	}
	return nil
}

var _ = registerVariants[Transformation]("transformation", nil,
	alt("translation", &Translation{}),
	alt("scale", &Scale{}),
	alt("rotation_x", &RotationX{}),
	alt("rotation_y", &RotationY{}),
	alt("rotation_z", &RotationZ{}),
)

// Compose folds a transformation list into one transform, applying the steps
// in list order
func Compose(steps []Variant[Transformation]) core.Transform {
	t := core.Identity()
	for _, step := range steps {
		switch s := step.Value.(type) {
		case *Translation:
			t = t.Then(core.Translate(s.Offset.Vec3()))
		case *Scale:
			t = t.Then(core.Scale(s.Factor))
		case *RotationX:
			t = t.Then(core.RotateX(s.Degrees))
		case *RotationY:
			t = t.Then(core.RotateY(s.Degrees))
		case *RotationZ:
			t = t.Then(core.RotateZ(s.Degrees))
		}
	}
	return t
}
