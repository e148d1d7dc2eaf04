package material

import (
	"github.com/df07/go-scene-preview/pkg/core"
)

// heightMapStrength scales height differences into normal tilt
const heightMapStrength = 4.0

// NormalMap perturbs shading normals with tangent space normals read from
// an image. Grayscale images are treated as height maps.
type NormalMap struct {
	Width   int
	Height  int
	Normals []core.Vec3 // tangent space, Z along the surface normal
}

// NewNormalMap creates a normal map from image pixels in [0, 1]
func NewNormalMap(width, height int, pixels []core.Vec3) *NormalMap {
	normals := make([]core.Vec3, len(pixels))
	if isGrayscale(pixels) {
		at := func(x, y int) float64 {
			x = min(max(x, 0), width-1)
			y = min(max(y, 0), height-1)
			return pixels[y*width+x].X
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				du := (at(x+1, y) - at(x-1, y)) * heightMapStrength
				dv := (at(x, y-1) - at(x, y+1)) * heightMapStrength
				normals[y*width+x] = core.NewVec3(-du, -dv, 1).Normalize()
			}
		}
	} else {
		for i, p := range pixels {
			normals[i] = p.Multiply(2).Subtract(core.Splat(1)).Normalize()
		}
	}
	return &NormalMap{Width: width, Height: height, Normals: normals}
}

// Perturb returns the shading normal for a surface normal at uv
func (m *NormalMap) Perturb(normal core.Vec3, uv core.Vec2) core.Vec3 {
	tn := m.Normals[texelIndex(uv, m.Width, m.Height)]
	if tn.NearZero() {
		return normal
	}
	tangent, bitangent := core.OrthonormalBasis(normal)
	return tangent.Multiply(tn.X).Add(bitangent.Multiply(tn.Y)).Add(normal.Multiply(tn.Z)).Normalize()
}

func isGrayscale(pixels []core.Vec3) bool {
	for _, p := range pixels {
		if p.X != p.Y || p.Y != p.Z {
			return false
		}
	}
	return true
}
