package renderer

import (
	"image"
	"image/color"

	"github.com/df07/go-scene-preview/pkg/core"
)

// FloatImage is a linear, unclamped color buffer
type FloatImage struct {
	Width  int
	Height int
	Pixels []core.Vec3 // Row-major, top row first
}

// NewFloatImage creates a black image
func NewFloatImage(width, height int) *FloatImage {
	return &FloatImage{Width: width, Height: height, Pixels: make([]core.Vec3, width*height)}
}

// At returns the pixel at (x, y)
func (f *FloatImage) At(x, y int) core.Vec3 {
	return f.Pixels[y*f.Width+x]
}

// Set sets the pixel at (x, y)
func (f *FloatImage) Set(x, y int, c core.Vec3) {
	f.Pixels[y*f.Width+x] = c
}

// ToRGBA converts to 8-bit sRGB-like output with gamma 2 and clamping
func (f *FloatImage) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetRGBA(x, y, vec3ToColor(f.At(x, y)))
		}
	}
	return img
}

// FloatImageFromRGBA reverses ToRGBA, up to quantization
func FloatImageFromRGBA(img *image.RGBA) *FloatImage {
	bounds := img.Bounds()
	f := NewFloatImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := img.RGBAAt(x+bounds.Min.X, y+bounds.Min.Y)
			v := core.NewVec3(float64(c.R), float64(c.G), float64(c.B)).Multiply(1.0 / 255)
			f.Set(x, y, v.MultiplyVec(v))
		}
	}
	return f
}

// vec3ToColor converts a Vec3 color to RGBA with proper clamping and gamma correction
func vec3ToColor(colorVec core.Vec3) color.RGBA {
	if !colorVec.IsFinite() {
		colorVec = core.Vec3{}
	}

	// Apply gamma correction (gamma = 2.0)
	colorVec = colorVec.GammaCorrect(2.0)

	// Clamp to valid color range
	colorVec = colorVec.Clamp(0.0, 1.0)

	return color.RGBA{
		R: uint8(255*colorVec.X + 0.5),
		G: uint8(255*colorVec.Y + 0.5),
		B: uint8(255*colorVec.Z + 0.5),
		A: 255,
	}
}

// CalculateAverageLuminance returns the mean Rec. 709 luminance of an image in [0, 1]
func CalculateAverageLuminance(img *image.RGBA) float64 {
	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return 0
	}

	total := 0.0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			total += (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
		}
	}
	return total / float64(pixels)
}
