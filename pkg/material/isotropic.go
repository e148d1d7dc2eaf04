package material

import (
	"math/rand"

	"github.com/df07/go-scene-preview/pkg/core"
)

// Isotropic scatters uniformly in all directions, the phase function of fog
type Isotropic struct {
	Color core.Vec3
}

// NewIsotropic creates a new isotropic material
func NewIsotropic(color core.Vec3) *Isotropic {
	return &Isotropic{Color: color}
}

// Scatter implements the Material interface for volume scattering
func (i *Isotropic) Scatter(rayIn core.Ray, hit *HitRecord, random *rand.Rand) (ScatterResult, bool) {
	return ScatterResult{
		Scattered:   core.NewRay(hit.Point, core.RandomUnitVector(random)),
		Attenuation: i.Color,
	}, true
}

// Albedo returns the fog color
func (i *Isotropic) Albedo(hit *HitRecord) core.Vec3 {
	return i.Color
}
