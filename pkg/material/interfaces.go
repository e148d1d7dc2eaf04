package material

import (
	"math/rand"

	"github.com/df07/go-scene-preview/pkg/core"
)

// Material interface for surfaces that scatter rays
type Material interface {
	// Scatter returns the scattered ray and its attenuation. ok is false
	// when the ray is absorbed.
	Scatter(rayIn core.Ray, hit *HitRecord, random *rand.Rand) (result ScatterResult, ok bool)

	// Albedo returns the base color at the hit, used by the preview shaders
	Albedo(hit *HitRecord) core.Vec3
}

// Emitter interface for materials that emit light
type Emitter interface {
	Emit(rayIn core.Ray, hit *HitRecord) core.Vec3
}

// ScatterResult contains the result of material scattering
type ScatterResult struct {
	Scattered   core.Ray  // The scattered ray
	Attenuation core.Vec3 // Color attenuation
}

// HitRecord contains information about a ray-object intersection
type HitRecord struct {
	Point     core.Vec3 // Point of intersection
	Normal    core.Vec3 // Surface normal, facing against the ray
	T         float64   // Parameter t along the ray
	UV        core.Vec2 // Surface coordinates for textures
	FrontFace bool      // Whether ray hit the front face
	Material  Material  // Material of the hit object
}

// SetFaceNormal sets the normal vector and determines front/back face
func (h *HitRecord) SetFaceNormal(ray core.Ray, outwardNormal core.Vec3) {
	h.FrontFace = ray.Direction.Dot(outwardNormal) < 0
	if h.FrontFace {
		h.Normal = outwardNormal
	} else {
		h.Normal = outwardNormal.Negate()
	}
}

// Surface holds what the scattering materials share: an albedo source and an
// optional normal map
type Surface struct {
	Texture   ColorSource
	NormalMap *NormalMap
}

// color evaluates the albedo at the hit
func (s Surface) color(hit *HitRecord) core.Vec3 {
	if s.Texture == nil {
		return core.Splat(1)
	}
	return s.Texture.Evaluate(hit.UV, hit.Point)
}

// normal returns the shading normal at the hit
func (s Surface) normal(hit *HitRecord) core.Vec3 {
	if s.NormalMap == nil {
		return hit.Normal
	}
	return s.NormalMap.Perturb(hit.Normal, hit.UV)
}
