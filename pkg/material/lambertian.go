package material

import (
	"math/rand"

	"github.com/df07/go-scene-preview/pkg/core"
)

// Lambertian represents a perfectly diffuse material
type Lambertian struct {
	Surface
}

// NewLambertian creates a new lambertian material with solid color
func NewLambertian(albedo core.Vec3) *Lambertian {
	return &Lambertian{Surface{Texture: NewSolidColor(albedo)}}
}

// NewTexturedLambertian creates a new lambertian material with texture and an optional normal map
func NewTexturedLambertian(albedoTexture ColorSource, normalMap *NormalMap) *Lambertian {
	return &Lambertian{Surface{Texture: albedoTexture, NormalMap: normalMap}}
}

// Scatter implements the Material interface for lambertian scattering
func (l *Lambertian) Scatter(rayIn core.Ray, hit *HitRecord, random *rand.Rand) (ScatterResult, bool) {
	// Cosine-weighted sampling cancels the cos/pi factor of the BRDF, leaving the albedo
	normal := l.normal(hit)
	direction := core.RandomCosineDirection(normal, random)
	if direction.NearZero() {
		direction = normal
	}

	return ScatterResult{
		Scattered:   core.NewRay(hit.Point, direction),
		Attenuation: l.color(hit),
	}, true
}

// Albedo returns the surface color at the hit
func (l *Lambertian) Albedo(hit *HitRecord) core.Vec3 {
	return l.color(hit)
}
