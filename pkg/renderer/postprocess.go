package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/df07/go-scene-preview/pkg/core"
)

// PostProcessor transforms the finished image
type PostProcessor interface {
	Process(img *FloatImage) *FloatImage
}

// Bloom adds a blurred copy of the bright areas back onto the image
type Bloom struct {
	KernelSizeFraction float64 // Blur radius as a fraction of the image width
	Threshold          float64 // Color length above which a pixel blooms
	MaxIntensity       float64 // Brightness cap of the bloom
}

// NewBloom creates a bloom post processor
func NewBloom(kernelSizeFraction, threshold, maxIntensity float64) *Bloom {
	return &Bloom{
		KernelSizeFraction: kernelSizeFraction,
		Threshold:          threshold,
		MaxIntensity:       maxIntensity,
	}
}

// Process implements the PostProcessor interface
func (b *Bloom) Process(img *FloatImage) *FloatImage {
	// The blur works on 8-bit channels, so bright values are scaled into [0, 1]
	// by MaxIntensity before blurring and scaled back afterwards
	bright := NewFloatImage(img.Width, img.Height)
	anyBright := false
	for i, c := range img.Pixels {
		if c.Length() > b.Threshold {
			bright.Pixels[i] = c.Clamp(0, b.MaxIntensity).Multiply(1 / b.MaxIntensity)
			anyBright = true
		}
	}
	if !anyBright {
		return img
	}

	radius := math.Max(1, b.KernelSizeFraction*float64(img.Width))
	blurred := blur.Gaussian(linearRGBA(bright), radius)

	out := NewFloatImage(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := blurred.RGBAAt(x, y)
			glow := core.NewVec3(float64(c.R), float64(c.G), float64(c.B)).Multiply(b.MaxIntensity / 255)
			out.Set(x, y, img.At(x, y).Add(glow))
		}
	}
	return out
}

// Denoise smooths sampling noise with a median filter
type Denoise struct {
	Radius float64
}

// NewDenoise creates a denoise post processor with a 3x3 median window
func NewDenoise() *Denoise {
	return &Denoise{Radius: 1}
}

// Process implements the PostProcessor interface
func (d *Denoise) Process(img *FloatImage) *FloatImage {
	return FloatImageFromRGBA(effect.Median(img.ToRGBA(), d.Radius))
}

// linearRGBA converts [0, 1] values to 8 bits without gamma
func linearRGBA(img *FloatImage) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.At(x, y).Clamp(0, 1)
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(255*c.X + 0.5),
				G: uint8(255*c.Y + 0.5),
				B: uint8(255*c.Z + 0.5),
				A: 255,
			})
		}
	}
	return out
}
