// Package model defines the typed node tree of a scene description and
// decodes it from YAML, enforcing the one-variant-per-node rule and value
// ranges before anything is compiled.
package model

import "time"

// Scene is the root of a scene description
type Scene struct {
	RenderConfiguration *RenderConfig        `yaml:"render_configuration,omitempty"`
	BackgroundColor     *Rgb                 `yaml:"background_color,omitempty"`
	Camera              CameraConfig         `yaml:"camera"`
	World               []Variant[Hittable] `yaml:"world"`
}

// Background returns the background color, black when unset
func (s *Scene) Background() Rgb {
	if s.BackgroundColor == nil {
		return Rgb{}
	}
	return *s.BackgroundColor
}

// RenderConfig returns the render configuration, or the defaults when unset
func (s *Scene) RenderConfig() RenderConfig {
	if s.RenderConfiguration == nil {
		return DefaultRenderConfig()
	}
	return *s.RenderConfiguration
}

// Defaults used when a scene leaves them out
const (
	DefaultSamplesPerPixel   = 50
	DefaultMaxDepth          = 50
	DefaultPreviewIntervalMs = 1000
)

// RenderConfig holds sampling, shading and output settings
type RenderConfig struct {
	SamplesPerPixel   int                      `yaml:"samples_per_pixel"`
	Shader            Variant[Shader]          `yaml:"shader,omitempty"`
	PostProcessors    []Variant[PostProcessor] `yaml:"post_processors,omitempty"`
	PreviewIntervalMs *int                     `yaml:"preview_interval_ms,omitempty"`
	WidthHeight       Variant[WidthHeight]     `yaml:"width_height,omitempty"`
}

// DefaultRenderConfig returns the configuration used for scenes without one
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		SamplesPerPixel: DefaultSamplesPerPixel,
		Shader:          Of[Shader](&PathTracingShader{MaxDepth: DefaultMaxDepth}),
		WidthHeight:     Of[WidthHeight](&ScreenWidthHeight{}),
	}
}

// PreviewInterval returns how often partial images are published. Zero means
// after every sample.
func (c RenderConfig) PreviewInterval() time.Duration {
	if c.PreviewIntervalMs == nil {
		return DefaultPreviewIntervalMs * time.Millisecond
	}
	return time.Duration(*c.PreviewIntervalMs) * time.Millisecond
}

func (c *RenderConfig) validate() error {
	if c.SamplesPerPixel < 1 {
		return outOfRange("samples_per_pixel", "must be at least 1, got %d", c.SamplesPerPixel)
	}
	if c.PreviewIntervalMs != nil && *c.PreviewIntervalMs < 0 {
		return outOfRange("preview_interval_ms", "must not be negative, got %d", *c.PreviewIntervalMs)
	}
	return nil
}

// CameraConfig places the camera
type CameraConfig struct {
	VerticalFovDegrees float64 `yaml:"vertical_fov_degrees"`
	ApertureSize       float64 `yaml:"aperture_size"`
	LookFrom           Pos     `yaml:"look_from"`
	LookAt             Pos     `yaml:"look_at"`
	Up                 *Pos    `yaml:"up,omitempty"`
}

// UpVector returns the configured up direction, +Y when unset
func (c CameraConfig) UpVector() Pos {
	if c.Up == nil {
		return NewPos(0, 1, 0)
	}
	return *c.Up
}

func (c *CameraConfig) validate() error {
	if c.VerticalFovDegrees <= 0 || c.VerticalFovDegrees >= 180 {
		return outOfRange("vertical_fov_degrees", "must be in (0, 180), got %g", c.VerticalFovDegrees)
	}
	if c.ApertureSize < 0 {
		return outOfRange("aperture_size", "must not be negative, got %g", c.ApertureSize)
	}
	if c.LookFrom == c.LookAt {
		return outOfRange("look_at", "must differ from look_from")
	}
	up := c.UpVector()
	if up == (Pos{}) {
		return outOfRange("up", "must not be the zero vector")
	}
	dir := c.LookAt.Vec3().Subtract(c.LookFrom.Vec3())
	if dir.Cross(up.Vec3()).NearZero() {
		return outOfRange("up", "must not be parallel to the viewing direction")
	}
	return nil
}
