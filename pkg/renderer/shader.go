package renderer

import (
	"math"
	"math/rand"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/df07/go-scene-preview/pkg/material"
)

// Shader turns a camera ray into a color
type Shader interface {
	Shade(ray core.Ray, scene *Scene, random *rand.Rand) core.Vec3
}

// minHitDistance keeps scattered rays from hitting the surface they leave
const minHitDistance = 0.001

// PathTracingShader follows rays through up to MaxDepth bounces
type PathTracingShader struct {
	MaxDepth int
}

// NewPathTracingShader creates a path tracing shader
func NewPathTracingShader(maxDepth int) *PathTracingShader {
	return &PathTracingShader{MaxDepth: maxDepth}
}

// Shade implements the Shader interface
func (s *PathTracingShader) Shade(ray core.Ray, scene *Scene, random *rand.Rand) core.Vec3 {
	color := core.Vec3{}
	throughput := core.Splat(1)

	for depth := 0; depth < s.MaxDepth; depth++ {
		hit, isHit := scene.World.Hit(ray, minHitDistance, math.Inf(1))
		if !isHit {
			return color.Add(throughput.MultiplyVec(scene.Background))
		}
		if hit.Material == nil {
			return color
		}

		if emitter, ok := hit.Material.(material.Emitter); ok {
			color = color.Add(throughput.MultiplyVec(emitter.Emit(ray, hit)))
		}

		scatter, didScatter := hit.Material.Scatter(ray, hit, random)
		if !didScatter {
			return color
		}
		throughput = throughput.MultiplyVec(scatter.Attenuation)
		ray = scatter.Scattered
	}

	// Bounce limit reached, no more light is gathered
	return color
}

// AlbedoShader shows the surface albedo without lighting
type AlbedoShader struct{}

// Shade implements the Shader interface
func (AlbedoShader) Shade(ray core.Ray, scene *Scene, random *rand.Rand) core.Vec3 {
	hit, isHit := scene.World.Hit(ray, minHitDistance, math.Inf(1))
	if !isHit {
		return scene.Background
	}
	return albedo(hit)
}

// NormalShader maps surface normals from [-1, 1] to colors in [0, 1]
type NormalShader struct{}

// Shade implements the Shader interface
func (NormalShader) Shade(ray core.Ray, scene *Scene, random *rand.Rand) core.Vec3 {
	hit, isHit := scene.World.Hit(ray, minHitDistance, math.Inf(1))
	if !isHit {
		return scene.Background
	}
	return hit.Normal.Add(core.Splat(1)).Multiply(0.5)
}

// SimpleShader shades the albedo by how directly the surface faces the camera
type SimpleShader struct{}

// Shade implements the Shader interface
func (SimpleShader) Shade(ray core.Ray, scene *Scene, random *rand.Rand) core.Vec3 {
	hit, isHit := scene.World.Hit(ray, minHitDistance, math.Inf(1))
	if !isHit {
		return scene.Background
	}
	facing := math.Abs(hit.Normal.Dot(ray.Direction.Normalize()))
	return albedo(hit).Multiply(0.2 + 0.8*facing)
}

func albedo(hit *material.HitRecord) core.Vec3 {
	if hit.Material == nil {
		return core.Vec3{}
	}
	return hit.Material.Albedo(hit)
}
