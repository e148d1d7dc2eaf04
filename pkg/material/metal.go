package material

import (
	"math/rand"

	"github.com/df07/go-scene-preview/pkg/core"
)

// Metal represents a metallic material with specular reflection
type Metal struct {
	Surface
	Fuzzness float64 // 0.0 = perfect mirror, 1.0 = very fuzzy
}

// NewMetal creates a new metal material
func NewMetal(albedo core.Vec3, fuzzness float64) *Metal {
	return NewTexturedMetal(NewSolidColor(albedo), nil, fuzzness)
}

// NewTexturedMetal creates a metal with a texture and an optional normal map
func NewTexturedMetal(albedoTexture ColorSource, normalMap *NormalMap, fuzzness float64) *Metal {
	return &Metal{Surface: Surface{Texture: albedoTexture, NormalMap: normalMap}, Fuzzness: fuzzness}
}

// Scatter implements the Material interface for metal scattering
func (m *Metal) Scatter(rayIn core.Ray, hit *HitRecord, random *rand.Rand) (ScatterResult, bool) {
	reflected := rayIn.Direction.Normalize().Reflect(m.normal(hit))

	// Add fuzziness by perturbing the reflection direction
	if m.Fuzzness > 0 {
		reflected = reflected.Add(core.RandomInUnitSphere(random).Multiply(m.Fuzzness))
	}

	// Only scatter if the ray leaves the surface (not absorbed)
	scattered := core.NewRay(hit.Point, reflected)
	return ScatterResult{
		Scattered:   scattered,
		Attenuation: m.color(hit),
	}, reflected.Dot(hit.Normal) > 0
}

// Albedo returns the surface color at the hit
func (m *Metal) Albedo(hit *HitRecord) core.Vec3 {
	return m.color(hit)
}
