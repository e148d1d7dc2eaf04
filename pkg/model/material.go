package model

import (
	"errors"

	"gopkg.in/yaml.v3"
)

// Material describes how a surface scatters or emits light
type Material interface{ materialNode() }

// Lambertian is a perfectly diffuse material
type Lambertian struct {
	Albedo Variant[Texture] `yaml:"albedo"`
	Normal *NormalTexture   `yaml:"normal,omitempty"`
}

// Glass is a dielectric that refracts light
type Glass struct {
	Albedo            Variant[Texture] `yaml:"albedo"`
	Normal            *NormalTexture   `yaml:"normal,omitempty"`
	IndexOfRefraction float64          `yaml:"index_of_refraction"`
}

// Metal reflects light, blurred by Fuzz
type Metal struct {
	Albedo Variant[Texture] `yaml:"albedo"`
	Normal *NormalTexture   `yaml:"normal,omitempty"`
	Fuzz   float64          `yaml:"fuzz"`
}

// Light emits Color. AttenuationHalfLength, when set, is the distance at
// which the emitted intensity has halved.
type Light struct {
	Color                 *Rgb     `yaml:"color,omitempty"`
	AttenuationHalfLength *float64 `yaml:"attenuation_half_length,omitempty"`
}

// Blend mixes two materials
type Blend struct {
	First       Variant[Material] `yaml:"first"`
	Second      Variant[Material] `yaml:"second"`
	BlendFactor float64           `yaml:"blend_factor"`
}

// Plastic is a diffuse base with a glossy coat
type Plastic struct {
	Albedo     *Variant[Texture] `yaml:"albedo,omitempty"`
	Normal     *NormalTexture    `yaml:"normal,omitempty"`
	Glossiness *float64          `yaml:"glossiness,omitempty"`
}

func (*Lambertian) materialNode() {}
func (*Glass) materialNode()      {}
func (*Metal) materialNode()      {}
func (*Light) materialNode()      {}
func (*Blend) materialNode()      {}
func (*Plastic) materialNode()    {}

// Material defaults
var (
	DefaultLightColor  = NewRgb(15, 15, 15)
	DefaultGlossiness  = 0.1
	DefaultPlasticFuzz = 0.05
)

// DefaultMaterial is flat white lambertian
func DefaultMaterial() Material {
	return &Lambertian{Albedo: Of[Texture](&ColorTexture{Color: White})}
}

// EmittedColor returns the light color, with the default applied
func (l *Light) EmittedColor() Rgb {
	if l.Color == nil {
		return DefaultLightColor
	}
	return *l.Color
}

// GlossinessOrDefault returns the plastic glossiness, with the default applied
func (p *Plastic) GlossinessOrDefault() float64 {
	if p.Glossiness == nil {
		return DefaultGlossiness
	}
	return *p.Glossiness
}

// AlbedoOrDefault returns the plastic albedo, white when unset
func (p *Plastic) AlbedoOrDefault() Texture {
	if p.Albedo == nil || p.Albedo.empty() {
		return &ColorTexture{Color: White}
	}
	return p.Albedo.Value
}

func (g *Glass) validate() error {
	if g.IndexOfRefraction <= 0 {
		return outOfRange("index_of_refraction", "must be positive, got %g", g.IndexOfRefraction)
	}
	return nil
}

func (m *Metal) validate() error {
	if m.Fuzz < 0 || m.Fuzz > 1 {
		return outOfRange("fuzz", "must be in [0, 1], got %g", m.Fuzz)
	}
	return nil
}

func (l *Light) validate() error {
	if l.AttenuationHalfLength != nil && *l.AttenuationHalfLength <= 0 {
		return outOfRange("attenuation_half_length", "must be positive, got %g", *l.AttenuationHalfLength)
	}
	return nil
}

func (b *Blend) validate() error {
	if b.BlendFactor < 0 || b.BlendFactor > 1 {
		return outOfRange("blend_factor", "must be in [0, 1], got %g", b.BlendFactor)
	}
	return nil
}

func (p *Plastic) validate() error {
	if g := p.GlossinessOrDefault(); g < 0 || g > 1 {
		return outOfRange("glossiness", "must be in [0, 1], got %g", g)
	}
	return nil
}

var _ = registerVariants[Material]("material", DefaultMaterial,
	alt("lambertian", &Lambertian{}),
	alt("glass", &Glass{}),
	alt("metal", &Metal{}),
	alt("light", &Light{}),
	alt("blend", &Blend{}),
	alt("plastic", &Plastic{}),
)

// Texture supplies a color per surface point
type Texture interface{ textureNode() }

// ColorTexture is a single color
type ColorTexture struct {
	Color Rgb
}

// ImageTexture reads colors from an image file
type ImageTexture struct {
	File string `yaml:"file"`
}

func (*ColorTexture) textureNode() {}
func (*ImageTexture) textureNode() {}

// UnmarshalYAML reads the color value directly
func (c *ColorTexture) UnmarshalYAML(node *yaml.Node) error {
	return c.Color.UnmarshalYAML(node)
}

// MarshalYAML writes the color value directly
func (c ColorTexture) MarshalYAML() (any, error) {
	return c.Color.MarshalYAML()
}

func (i *ImageTexture) validate() error {
	if i.File == "" {
		return errors.New("file must not be empty")
	}
	return nil
}

var _ = registerVariants[Texture]("texture", nil,
	alt("color", &ColorTexture{}),
	alt("image", &ImageTexture{}),
)

// NormalTexture perturbs surface normals from a normal map or height map image
type NormalTexture struct {
	File string `yaml:"file"`
}

func (n *NormalTexture) validate() error {
	if n.File == "" {
		return errors.New("file must not be empty")
	}
	return nil
}
