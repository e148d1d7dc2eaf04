package renderer

import (
	"context"
	"errors"
	"image"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/df07/go-scene-preview/pkg/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(config ProgressiveConfig) *Engine {
	config.TileSize = 4
	config.NumWorkers = 2
	return NewEngine(config, nil)
}

// runEngine renders into a channel large enough for every pass
func runEngine(ctx context.Context, engine *Engine, scene *Scene) ([]Progress, error) {
	out := make(chan Progress, scene.SamplesPerPixel+1)
	err := engine.RayTrace(ctx, scene, out)

	var updates []Progress
	for p := range out {
		updates = append(updates, p)
	}
	return updates, err
}

func TestDefaultProgressiveConfig(t *testing.T) {
	config := DefaultProgressiveConfig()
	assert.Equal(t, 32, config.TileSize)
	assert.Equal(t, 0, config.NumWorkers)
	assert.False(t, config.FinalImageOnly)
}

func TestNewTileGrid(t *testing.T) {
	tiles := NewTileGrid(10, 7, 4)
	require.Len(t, tiles, 6)

	assert.Equal(t, image.Rect(0, 0, 4, 4), tiles[0].Bounds)
	assert.Equal(t, image.Rect(8, 4, 10, 7), tiles[5].Bounds)

	covered := 0
	for i, tile := range tiles {
		assert.Equal(t, i, tile.ID)
		covered += tile.Bounds.Dx() * tile.Bounds.Dy()
	}
	assert.Equal(t, 70, covered)
}

func TestEngine_RayTrace_ReachesCompletion(t *testing.T) {
	scene := sphereScene(material.NewLambertian(core.NewVec3(0.8, 0.2, 0.2)), SimpleShader{})
	scene.Width = 10
	scene.Height = 6

	updates, err := runEngine(context.Background(), testEngine(ProgressiveConfig{}), scene)
	require.NoError(t, err)
	require.Len(t, updates, scene.SamplesPerPixel)

	for i, p := range updates {
		assert.Equal(t, i+1, p.Sample)
		assert.NotNil(t, p.Image, "preview interval 0 publishes every pass")
		if i > 0 {
			assert.Greater(t, p.Progress, updates[i-1].Progress)
		}
	}

	last := updates[len(updates)-1]
	assert.Equal(t, 1.0, last.Progress)
	assert.Equal(t, time.Duration(0), last.EstimatedTimeLeft)
	assert.Equal(t, image.Rect(0, 0, 10, 6), last.Image.Bounds())
	assert.Equal(t, 10*6*scene.SamplesPerPixel, last.Stats.TotalSamples)

	// The sphere fills the middle of the frame
	center := last.Image.RGBAAt(5, 3)
	corner := last.Image.RGBAAt(0, 0)
	assert.Greater(t, center.R, center.B)
	assert.Greater(t, corner.B, corner.R)
}

func TestEngine_RayTrace_ImagePublishing(t *testing.T) {
	tests := []struct {
		name           string
		config         ProgressiveConfig
		interval       time.Duration
		expectedImages []bool
	}{
		{
			name:           "every pass",
			expectedImages: []bool{true, true, true, true},
		},
		{
			name:           "long interval only publishes the final image",
			interval:       time.Hour,
			expectedImages: []bool{false, false, false, true},
		},
		{
			name:           "final image only",
			config:         ProgressiveConfig{FinalImageOnly: true},
			expectedImages: []bool{false, false, false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene := sphereScene(material.NewLambertian(core.Splat(0.5)), AlbedoShader{})
			scene.PreviewInterval = tt.interval

			updates, err := runEngine(context.Background(), testEngine(tt.config), scene)
			require.NoError(t, err)
			require.Len(t, updates, len(tt.expectedImages))
			for i, expected := range tt.expectedImages {
				assert.Equal(t, expected, updates[i].Image != nil, "pass %d", i+1)
			}
		})
	}
}

type countingPostProcessor struct {
	calls int
}

func (c *countingPostProcessor) Process(img *FloatImage) *FloatImage {
	c.calls++
	return filledImage(img.Width, img.Height, core.Splat(1))
}

func TestEngine_RayTrace_PostProcessorsRunOnFinalImage(t *testing.T) {
	pp := &countingPostProcessor{}
	scene := sphereScene(material.NewLambertian(core.Splat(0.5)), AlbedoShader{})
	scene.PostProcessors = []PostProcessor{pp}

	updates, err := runEngine(context.Background(), testEngine(ProgressiveConfig{}), scene)
	require.NoError(t, err)
	assert.Equal(t, 1, pp.calls)

	last := updates[len(updates)-1]
	assert.Equal(t, uint8(255), last.Image.RGBAAt(0, 0).R)
	assert.NotEqual(t, uint8(255), updates[0].Image.RGBAAt(0, 0).R)
}

func TestEngine_RayTrace_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scene := sphereScene(material.NewLambertian(core.Splat(0.5)), AlbedoShader{})
	updates, err := runEngine(ctx, testEngine(ProgressiveConfig{}), scene)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, updates)
}

func TestEngine_RayTrace_CancelledWhileBlocked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scene := sphereScene(material.NewLambertian(core.Splat(0.5)), AlbedoShader{})
	scene.SamplesPerPixel = 1000

	// Nobody reads the unbuffered channel until the first pass is sent
	out := make(chan Progress)
	done := make(chan error, 1)
	go func() { done <- testEngine(ProgressiveConfig{}).RayTrace(ctx, scene, out) }()

	first := <-out
	assert.Equal(t, 1, first.Sample)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
	for range out {
	}
}

func TestEngine_RayTrace_InvalidScene(t *testing.T) {
	scene := sphereScene(material.NewLambertian(core.Splat(0.5)), AlbedoShader{})
	scene.SamplesPerPixel = 0

	updates, err := runEngine(context.Background(), testEngine(ProgressiveConfig{}), scene)
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Contains(t, err.Error(), "samples per pixel")
	assert.Empty(t, updates)
}

type panickingShader struct{}

func (panickingShader) Shade(ray core.Ray, scene *Scene, random *rand.Rand) core.Vec3 {
	panic("bad material")
}

func TestEngine_RayTrace_RecoversShaderPanic(t *testing.T) {
	scene := sphereScene(material.NewLambertian(core.Splat(0.5)), panickingShader{})

	updates, err := runEngine(context.Background(), testEngine(ProgressiveConfig{}), scene)
	var engineErr *EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Contains(t, err.Error(), "bad material")
	assert.Empty(t, updates)
}

type nanShader struct{}

func (nanShader) Shade(ray core.Ray, scene *Scene, random *rand.Rand) core.Vec3 {
	return core.NewVec3(math.NaN(), 0, 0)
}

func TestEngine_RayTrace_DropsNonFiniteSamples(t *testing.T) {
	scene := sphereScene(material.NewLambertian(core.Splat(0.5)), nanShader{})
	scene.SamplesPerPixel = 1

	updates, err := runEngine(context.Background(), testEngine(ProgressiveConfig{}), scene)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, 0, updates[0].Stats.TotalSamples)
	assert.Equal(t, uint8(0), updates[0].Image.RGBAAt(3, 3).R)
}
