package geometry

import (
	"testing"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuad_Hit(t *testing.T) {
	// Unit square in the XY plane facing +Z
	quad := NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), nil)

	tests := []struct {
		name      string
		origin    core.Vec3
		direction core.Vec3
		shouldHit bool
		expectedT float64
		front     bool
		uv        core.Vec2
	}{
		{"center from front", core.NewVec3(0.5, 0.5, 1), core.NewVec3(0, 0, -1), true, 1, true, core.NewVec2(0.5, 0.5)},
		{"corner region from back", core.NewVec3(0.25, 0.75, -2), core.NewVec3(0, 0, 1), true, 2, false, core.NewVec2(0.25, 0.75)},
		{"outside u", core.NewVec3(1.5, 0.5, 1), core.NewVec3(0, 0, -1), false, 0, false, core.Vec2{}},
		{"outside v", core.NewVec3(0.5, -0.1, 1), core.NewVec3(0, 0, -1), false, 0, false, core.Vec2{}},
		{"parallel", core.NewVec3(0.5, 0.5, 1), core.NewVec3(1, 0, 0), false, 0, false, core.Vec2{}},
		{"behind origin", core.NewVec3(0.5, 0.5, -1), core.NewVec3(0, 0, -1), false, 0, false, core.Vec2{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, isHit := quad.Hit(core.NewRay(tt.origin, tt.direction), 0.001, 1000)
			require.Equal(t, tt.shouldHit, isHit)
			if !tt.shouldHit {
				return
			}
			assert.InDelta(t, tt.expectedT, hit.T, 1e-9)
			assert.Equal(t, tt.front, hit.FrontFace)
			assert.InDelta(t, tt.uv.X, hit.UV.X, 1e-9)
			assert.InDelta(t, tt.uv.Y, hit.UV.Y, 1e-9)
			if tt.front {
				assertVecNear(t, core.NewVec3(0, 0, 1), hit.Normal)
			} else {
				assertVecNear(t, core.NewVec3(0, 0, -1), hit.Normal)
			}
		})
	}
}

func TestQuad_BoundingBoxIsPadded(t *testing.T) {
	quad := NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), nil)
	bbox := quad.BoundingBox()
	assert.Less(t, bbox.Min.Z, 0.0)
	assert.Greater(t, bbox.Max.Z, 0.0)
	assert.Equal(t, 1.0, bbox.Max.X)
}

func TestNewTransformedQuad(t *testing.T) {
	transform := core.RotateY(90).Then(core.Translate(core.NewVec3(0, 0, -3)))
	quad := NewTransformedQuad(core.NewVec3(-0.5, -0.5, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), nil, transform)

	// The quad now faces +X at z=-3
	assertVecNear(t, core.NewVec3(1, 0, 0), quad.Normal)
	hit, isHit := quad.Hit(core.NewRay(core.NewVec3(5, 0, -3), core.NewVec3(-1, 0, 0)), 0.001, 1000)
	require.True(t, isHit)
	assert.InDelta(t, 5.0, hit.T, 1e-9)
	assert.True(t, hit.FrontFace)
}
