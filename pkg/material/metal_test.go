package material

import (
	"math/rand"
	"testing"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetal_PerfectMirror(t *testing.T) {
	metal := NewMetal(core.NewVec3(0.9, 0.8, 0.7), 0)
	random := rand.New(rand.NewSource(1))
	ray := core.NewRay(core.NewVec3(-1, 1, 0), core.NewVec3(1, -1, 0))
	hit := &HitRecord{Point: core.Vec3{}, Normal: core.NewVec3(0, 1, 0), FrontFace: true}

	scatter, ok := metal.Scatter(ray, hit, random)
	require.True(t, ok)

	expected := core.NewVec3(1, 1, 0).Normalize()
	got := scatter.Scattered.Direction.Normalize()
	assert.InDelta(t, expected.X, got.X, 1e-9)
	assert.InDelta(t, expected.Y, got.Y, 1e-9)
	assert.InDelta(t, expected.Z, got.Z, 1e-9)
	assert.Equal(t, core.NewVec3(0.9, 0.8, 0.7), scatter.Attenuation)
}

func TestMetal_FuzzStaysNearReflection(t *testing.T) {
	metal := NewMetal(core.Splat(1), 0.3)
	random := rand.New(rand.NewSource(7))
	ray := core.NewRay(core.NewVec3(0, 1, 0), core.NewVec3(0, -1, 0))
	hit := &HitRecord{Normal: core.NewVec3(0, 1, 0), FrontFace: true}

	for i := 0; i < 200; i++ {
		scatter, ok := metal.Scatter(ray, hit, random)
		if !ok {
			continue
		}
		// The perturbation is bounded by the fuzz radius around the unit reflection
		offset := scatter.Scattered.Direction.Subtract(core.NewVec3(0, 1, 0))
		assert.LessOrEqual(t, offset.Length(), 0.3+1e-9)
	}
}

func TestMetal_GrazingFuzzCanAbsorb(t *testing.T) {
	metal := NewMetal(core.Splat(1), 1)
	random := rand.New(rand.NewSource(3))
	// Nearly parallel to the surface
	ray := core.NewRay(core.NewVec3(-1, 0.01, 0), core.NewVec3(1, -0.01, 0))
	hit := &HitRecord{Normal: core.NewVec3(0, 1, 0), FrontFace: true}

	absorbed := 0
	for i := 0; i < 500; i++ {
		if _, ok := metal.Scatter(ray, hit, random); !ok {
			absorbed++
		}
	}
	assert.Greater(t, absorbed, 0)
}
