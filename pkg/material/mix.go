package material

import (
	"math"
	"math/rand"

	"github.com/df07/go-scene-preview/pkg/core"
)

// Mix represents a material that probabilistically chooses between two materials
type Mix struct {
	Material1 Material
	Material2 Material
	Ratio     float64 // 0.0 = all material1, 1.0 = all material2
}

// NewMix creates a new mix material
func NewMix(material1, material2 Material, ratio float64) *Mix {
	// Clamp ratio to valid range
	ratio = math.Max(0.0, math.Min(ratio, 1.0))

	return &Mix{
		Material1: material1,
		Material2: material2,
		Ratio:     ratio,
	}
}

// plasticFuzz is the fuzz of the glossy coat of plastic
const plasticFuzz = 0.05

// NewPlastic creates a diffuse material with a glossy coat. glossiness is
// the share of the coat.
func NewPlastic(albedo ColorSource, normalMap *NormalMap, glossiness float64) *Mix {
	return NewMix(
		NewTexturedLambertian(albedo, normalMap),
		NewTexturedMetal(albedo, normalMap, plasticFuzz),
		glossiness,
	)
}

// Scatter implements the Material interface for mix material
func (m *Mix) Scatter(rayIn core.Ray, hit *HitRecord, random *rand.Rand) (ScatterResult, bool) {
	if random.Float64() < m.Ratio {
		return m.Material2.Scatter(rayIn, hit, random)
	}
	return m.Material1.Scatter(rayIn, hit, random)
}

// Emit blends the emission of the mixed materials that emit
func (m *Mix) Emit(rayIn core.Ray, hit *HitRecord) core.Vec3 {
	var emitted core.Vec3
	if e, ok := m.Material1.(Emitter); ok {
		emitted = emitted.Add(e.Emit(rayIn, hit).Multiply(1 - m.Ratio))
	}
	if e, ok := m.Material2.(Emitter); ok {
		emitted = emitted.Add(e.Emit(rayIn, hit).Multiply(m.Ratio))
	}
	return emitted
}

// Albedo blends the albedo of both materials
func (m *Mix) Albedo(hit *HitRecord) core.Vec3 {
	return m.Material1.Albedo(hit).Multiply(1 - m.Ratio).Add(m.Material2.Albedo(hit).Multiply(m.Ratio))
}
