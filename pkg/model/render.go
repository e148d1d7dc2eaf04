package model

// Shader selects how camera rays are turned into colors
type Shader interface{ shaderNode() }

// PathTracingShader is the physically based shader
type PathTracingShader struct {
	MaxDepth int `yaml:"max_depth"`
}

// SimpleShader combines albedo and normal without scattering
type SimpleShader struct{}

// AlbedoShader shows surface albedo only
type AlbedoShader struct{}

// NormalShader shows surface normals as colors
type NormalShader struct{}

func (*PathTracingShader) shaderNode() {}
func (*SimpleShader) shaderNode()      {}
func (*AlbedoShader) shaderNode()      {}
func (*NormalShader) shaderNode()      {}

func (s *PathTracingShader) validate() error {
	if s.MaxDepth < 1 {
		return outOfRange("max_depth", "must be at least 1, got %d", s.MaxDepth)
	}
	return nil
}

var _ = registerVariants[Shader]("shader",
	func() Shader { return &PathTracingShader{MaxDepth: DefaultMaxDepth} },
	alt("path_tracing", &PathTracingShader{}),
	alt("simple", &SimpleShader{}),
	alt("albedo", &AlbedoShader{}),
	alt("normal", &NormalShader{}),
)

// PostProcessor transforms the finished image
type PostProcessor interface{ postProcessorNode() }

// BloomPostProcessor makes bright areas bleed into their surroundings
type BloomPostProcessor struct {
	KernelSizeFraction float64  `yaml:"kernel_size_fraction"`
	Threshold          *float64 `yaml:"threshold,omitempty"`
	MaxIntensity       *float64 `yaml:"max_intensity,omitempty"`
}

// DenoisePostProcessor smooths sampling noise
type DenoisePostProcessor struct{}

func (*BloomPostProcessor) postProcessorNode()   {}
func (*DenoisePostProcessor) postProcessorNode() {}

func (b *BloomPostProcessor) validate() error {
	if b.KernelSizeFraction <= 0 || b.KernelSizeFraction > 1 {
		return outOfRange("kernel_size_fraction", "must be in (0, 1], got %g", b.KernelSizeFraction)
	}
	if b.Threshold != nil && *b.Threshold < 0 {
		return outOfRange("threshold", "must not be negative, got %g", *b.Threshold)
	}
	if b.MaxIntensity != nil && *b.MaxIntensity <= 0 {
		return outOfRange("max_intensity", "must be positive, got %g", *b.MaxIntensity)
	}
	return nil
}

var _ = registerVariants[PostProcessor]("post processor", nil,
	alt("bloom", &BloomPostProcessor{}),
	alt("denoise", &DenoisePostProcessor{}),
)

// MaxDimension is the exclusive upper bound of a custom width or height
const MaxDimension = 8000

// WidthHeight selects the output image size
type WidthHeight interface{ widthHeightNode() }

// ScreenWidthHeight uses the size of the render target
type ScreenWidthHeight struct{}

// HalfScreenWidthHeight uses half of the render target size
type HalfScreenWidthHeight struct{}

// QuarterScreenWidthHeight uses a quarter of the render target size
type QuarterScreenWidthHeight struct{}

// CustomWidthHeight uses a fixed size
type CustomWidthHeight struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func (*ScreenWidthHeight) widthHeightNode()        {}
func (*HalfScreenWidthHeight) widthHeightNode()    {}
func (*QuarterScreenWidthHeight) widthHeightNode() {}
func (*CustomWidthHeight) widthHeightNode()        {}

func (c *CustomWidthHeight) validate() error {
	if c.Width < 1 || c.Width >= MaxDimension {
		return outOfRange("width", "must be in [1, %d), got %d", MaxDimension, c.Width)
	}
	if c.Height < 1 || c.Height >= MaxDimension {
		return outOfRange("height", "must be in [1, %d), got %d", MaxDimension, c.Height)
	}
	return nil
}

var _ = registerVariants[WidthHeight]("width_height",
	func() WidthHeight { return &ScreenWidthHeight{} },
	alt("screen", &ScreenWidthHeight{}),
	alt("half_screen", &HalfScreenWidthHeight{}),
	alt("quarter_screen", &QuarterScreenWidthHeight{}),
	alt("custom", &CustomWidthHeight{}),
)
