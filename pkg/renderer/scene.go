package renderer

import (
	"fmt"
	"time"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/df07/go-scene-preview/pkg/geometry"
)

// Scene is everything the engine needs to render an image
type Scene struct {
	Camera          *Camera
	World           geometry.Shape // Usually a BVH over all objects
	Background      core.Vec3      // Color of rays that hit nothing
	Width           int
	Height          int
	SamplesPerPixel int
	Shader          Shader
	PostProcessors  []PostProcessor // Applied in order to the final image
	PreviewInterval time.Duration   // Minimum time between partial images, 0 for every sample
}

// Validate reports a scene the engine cannot render
func (s *Scene) Validate() error {
	switch {
	case s.Camera == nil:
		return fmt.Errorf("scene has no camera")
	case s.World == nil:
		return fmt.Errorf("scene has no world")
	case s.Shader == nil:
		return fmt.Errorf("scene has no shader")
	case s.Width < 1 || s.Height < 1:
		return fmt.Errorf("invalid image size %dx%d", s.Width, s.Height)
	case s.SamplesPerPixel < 1:
		return fmt.Errorf("samples per pixel must be at least 1, got %d", s.SamplesPerPixel)
	}
	return nil
}
