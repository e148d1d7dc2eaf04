package renderer

import (
	"testing"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/stretchr/testify/assert"
)

func assertVecNear(t *testing.T, expected, actual core.Vec3) {
	t.Helper()
	assert.InDelta(t, expected.X, actual.X, 1e-9, "x of %v", actual)
	assert.InDelta(t, expected.Y, actual.Y, 1e-9, "y of %v", actual)
	assert.InDelta(t, expected.Z, actual.Z, 1e-9, "z of %v", actual)
}

func testCamera(aspect float64) *Camera {
	return NewCamera(CameraConfig{
		LookFrom:    core.NewVec3(0, 0, 0),
		LookAt:      core.NewVec3(0, 0, -1),
		Up:          core.NewVec3(0, 1, 0),
		VFov:        90,
		AspectRatio: aspect,
	})
}

func TestCamera_GetRay(t *testing.T) {
	tests := []struct {
		name      string
		aspect    float64
		s, t      float64
		direction core.Vec3
	}{
		{name: "center", aspect: 1, s: 0.5, t: 0.5, direction: core.NewVec3(0, 0, -1)},
		{name: "lower left", aspect: 1, s: 0, t: 0, direction: core.NewVec3(-1, -1, -1)},
		{name: "upper right", aspect: 1, s: 1, t: 1, direction: core.NewVec3(1, 1, -1)},
		{name: "wide image", aspect: 2, s: 1, t: 0.5, direction: core.NewVec3(2, 0, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ray := testCamera(tt.aspect).GetRay(tt.s, tt.t, nil)
			assertVecNear(t, core.NewVec3(0, 0, 0), ray.Origin)
			assertVecNear(t, tt.direction, ray.Direction)
		})
	}
}

func TestCamera_ApertureMovesOriginOnLens(t *testing.T) {
	camera := NewCamera(CameraConfig{
		LookFrom:    core.NewVec3(0, 0, 5),
		LookAt:      core.NewVec3(0, 0, 0),
		Up:          core.NewVec3(0, 1, 0),
		VFov:        40,
		Aperture:    1,
		AspectRatio: 1,
	})
	random := newTestRandom()

	for i := 0; i < 50; i++ {
		ray := camera.GetRay(0.5, 0.5, random)
		offset := ray.Origin.Subtract(core.NewVec3(0, 0, 5))
		assert.InDelta(t, 0, offset.Z, 1e-9)
		assert.LessOrEqual(t, offset.Length(), 0.5+1e-9)

		// All lens samples converge on the focus point
		assertVecNear(t, core.NewVec3(0, 0, 0), ray.At(1))
	}
}
