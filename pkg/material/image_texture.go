package material

import (
	"github.com/df07/go-scene-preview/pkg/core"
)

// ColorSource is a texture: a color that may vary over a surface
type ColorSource interface {
	Evaluate(uv core.Vec2, point core.Vec3) core.Vec3
}

// SolidColor is the same color everywhere
type SolidColor struct {
	Color core.Vec3
}

func NewSolidColor(color core.Vec3) *SolidColor {
	return &SolidColor{Color: color}
}

func (s *SolidColor) Evaluate(core.Vec2, core.Vec3) core.Vec3 {
	return s.Color
}

// ImageTexture provides color from a 2D image
type ImageTexture struct {
	Width  int
	Height int
	Pixels []core.Vec3 // Row-major: Pixels[y*Width + x]
}

// NewImageTexture creates a new image texture
func NewImageTexture(width, height int, pixels []core.Vec3) *ImageTexture {
	return &ImageTexture{
		Width:  width,
		Height: height,
		Pixels: pixels,
	}
}

// Evaluate samples the texture at given UV coordinates using nearest-neighbor filtering
func (t *ImageTexture) Evaluate(uv core.Vec2, point core.Vec3) core.Vec3 {
	return t.Pixels[texelIndex(uv, t.Width, t.Height)]
}

// texelIndex maps wrapped UV coordinates to a row-major pixel index.
// V=0 is the bottom row of the image.
func texelIndex(uv core.Vec2, width, height int) int {
	u := uv.X - float64(int(uv.X))
	v := uv.Y - float64(int(uv.Y))
	if u < 0 {
		u += 1.0
	}
	if v < 0 {
		v += 1.0
	}

	x := min(max(int(u*float64(width)), 0), width-1)
	y := min(max(int((1.0-v)*float64(height)), 0), height-1)
	return y*width + x
}
