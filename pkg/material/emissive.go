package material

import (
	"math"
	"math/rand"

	"github.com/df07/go-scene-preview/pkg/core"
)

// Emissive represents a light-emitting material
type Emissive struct {
	Emission   core.Vec3 // Emitted light color/intensity
	HalfLength float64   // Distance at which emission has halved, 0 disables attenuation
}

// NewEmissive creates a new emissive material
func NewEmissive(emission core.Vec3) *Emissive {
	return &Emissive{Emission: emission}
}

// NewAttenuatedEmissive creates a light that fades with the distance travelled by the ray
func NewAttenuatedEmissive(emission core.Vec3, halfLength float64) *Emissive {
	return &Emissive{Emission: emission, HalfLength: halfLength}
}

// Scatter implements the Material interface for emissive materials.
// Emissive materials don't scatter rays, they only emit light.
func (e *Emissive) Scatter(rayIn core.Ray, hit *HitRecord, random *rand.Rand) (ScatterResult, bool) {
	return ScatterResult{}, false
}

// Emit returns the emitted light for this material
func (e *Emissive) Emit(rayIn core.Ray, hit *HitRecord) core.Vec3 {
	if e.HalfLength <= 0 {
		return e.Emission
	}
	distance := hit.T * rayIn.Direction.Length()
	return e.Emission.Multiply(math.Pow(0.5, distance/e.HalfLength))
}

// Albedo returns the emission scaled into displayable range
func (e *Emissive) Albedo(hit *HitRecord) core.Vec3 {
	peak := math.Max(e.Emission.X, math.Max(e.Emission.Y, e.Emission.Z))
	if peak <= 1 {
		return e.Emission
	}
	return e.Emission.Multiply(1 / peak)
}
