package compiler

import (
	"fmt"
	"path/filepath"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/df07/go-scene-preview/pkg/geometry"
	"github.com/df07/go-scene-preview/pkg/loaders"
	"github.com/df07/go-scene-preview/pkg/material"
	"github.com/df07/go-scene-preview/pkg/model"
	"github.com/df07/go-scene-preview/pkg/modelcache"
	"github.com/df07/go-scene-preview/pkg/renderer"
	"github.com/mitchellh/go-homedir"
)

// Bloom defaults for unset fields
const (
	defaultBloomThreshold    = 1.0
	defaultBloomMaxIntensity = 10.0
)

// sceneBuilder holds the state of one Compile call
type sceneBuilder struct {
	*Compiler
	textures map[string]*loaders.ImageData // Images loaded by this call, by resolved path
}

func (b *sceneBuilder) build(scene *model.Scene, target Dimensions) (*renderer.Scene, error) {
	config := scene.RenderConfig()

	width, height := outputSize(config.WidthHeight.Value, target)
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid render target %dx%d", target.Width, target.Height)
	}

	shader, err := convertShader(config.Shader.Value)
	if err != nil {
		return nil, err
	}

	postProcessors := make([]renderer.PostProcessor, 0, len(config.PostProcessors))
	for i, pp := range config.PostProcessors {
		converted, err := convertPostProcessor(pp.Value)
		if err != nil {
			return nil, fmt.Errorf("post_processors[%d]: %w", i, err)
		}
		postProcessors = append(postProcessors, converted)
	}

	shapes := make([]geometry.Shape, 0, len(scene.World))
	for i, node := range scene.World {
		shape, err := b.convertHittable(node.Value)
		if err != nil {
			return nil, fmt.Errorf("world[%d]: %w", i, err)
		}
		shapes = append(shapes, shape)
	}

	b.logger.Debug("compiled scene",
		"objects", len(shapes), "width", width, "height", height,
		"samples", config.SamplesPerPixel)

	return &renderer.Scene{
		Camera:          convertCamera(scene.Camera, float64(width)/float64(height)),
		World:           geometry.NewBVH(shapes),
		Background:      scene.Background().Vec3(),
		Width:           width,
		Height:          height,
		SamplesPerPixel: config.SamplesPerPixel,
		Shader:          shader,
		PostProcessors:  postProcessors,
		PreviewInterval: config.PreviewInterval(),
	}, nil
}

// outputSize resolves a width_height node against the render target
func outputSize(node model.WidthHeight, target Dimensions) (int, int) {
	switch wh := node.(type) {
	case *model.HalfScreenWidthHeight:
		return max(1, target.Width/2), max(1, target.Height/2)
	case *model.QuarterScreenWidthHeight:
		return max(1, target.Width/4), max(1, target.Height/4)
	case *model.CustomWidthHeight:
		return wh.Width, wh.Height
	default:
		return target.Width, target.Height
	}
}

func convertCamera(config model.CameraConfig, aspectRatio float64) *renderer.Camera {
	return renderer.NewCamera(renderer.CameraConfig{
		LookFrom:    config.LookFrom.Vec3(),
		LookAt:      config.LookAt.Vec3(),
		Up:          config.UpVector().Vec3(),
		VFov:        config.VerticalFovDegrees,
		Aperture:    config.ApertureSize,
		AspectRatio: aspectRatio,
	})
}

func convertShader(node model.Shader) (renderer.Shader, error) {
	switch s := node.(type) {
	case nil:
		return renderer.NewPathTracingShader(model.DefaultMaxDepth), nil
	case *model.PathTracingShader:
		return renderer.NewPathTracingShader(s.MaxDepth), nil
	case *model.SimpleShader:
		return renderer.SimpleShader{}, nil
	case *model.AlbedoShader:
		return renderer.AlbedoShader{}, nil
	case *model.NormalShader:
		return renderer.NormalShader{}, nil
	default:
		return nil, fmt.Errorf("unsupported shader %T", node)
	}
}

func convertPostProcessor(node model.PostProcessor) (renderer.PostProcessor, error) {
	switch pp := node.(type) {
	case *model.BloomPostProcessor:
		threshold, maxIntensity := defaultBloomThreshold, defaultBloomMaxIntensity
		if pp.Threshold != nil {
			threshold = *pp.Threshold
		}
		if pp.MaxIntensity != nil {
			maxIntensity = *pp.MaxIntensity
		}
		return renderer.NewBloom(pp.KernelSizeFraction, threshold, maxIntensity), nil
	case *model.DenoisePostProcessor:
		return renderer.NewDenoise(), nil
	default:
		return nil, fmt.Errorf("unsupported post processor %T", node)
	}
}

func (b *sceneBuilder) convertHittable(node model.Hittable) (geometry.Shape, error) {
	switch h := node.(type) {
	case *model.Sphere:
		mat, err := b.convertMaterial(h.Material.Value)
		if err != nil {
			return nil, fmt.Errorf("sphere: %w", err)
		}
		return geometry.NewSphere(h.Center.Vec3(), h.Radius, mat), nil

	case *model.Quad:
		mat, err := b.convertMaterial(h.Material.Value)
		if err != nil {
			return nil, fmt.Errorf("quad: %w", err)
		}
		if len(h.Transformations) == 0 {
			return geometry.NewQuad(h.Q.Vec3(), h.U.Vec3(), h.V.Vec3(), mat), nil
		}
		return geometry.NewTransformedQuad(h.Q.Vec3(), h.U.Vec3(), h.V.Vec3(), mat, model.Compose(h.Transformations)), nil

	case *model.Box:
		mat, err := b.convertMaterial(h.Material.Value)
		if err != nil {
			return nil, fmt.Errorf("box: %w", err)
		}
		if len(h.Transformations) == 0 {
			return geometry.NewBox(h.A.Vec3(), h.B.Vec3(), mat), nil
		}
		return geometry.NewTransformedBox(h.A.Vec3(), h.B.Vec3(), mat, model.Compose(h.Transformations)), nil

	case *model.ConstantMedium:
		boundary := geometry.NewBox(h.A.Vec3(), h.B.Vec3(), nil)
		return geometry.NewConstantMedium(boundary, h.DensityOrDefault(), h.ColorOrDefault().Vec3()), nil

	case *model.Model:
		shape, err := b.convertModel(h)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", h.File(), err)
		}
		return shape, nil

	default:
		return nil, fmt.Errorf("unsupported hittable %T", node)
	}
}

func (b *sceneBuilder) convertMaterial(node model.Material) (material.Material, error) {
	switch m := node.(type) {
	case nil:
		return b.convertMaterial(model.DefaultMaterial())

	case *model.Lambertian:
		albedo, normalMap, err := b.convertSurface(m.Albedo.Value, m.Normal)
		if err != nil {
			return nil, fmt.Errorf("lambertian: %w", err)
		}
		return material.NewTexturedLambertian(albedo, normalMap), nil

	case *model.Metal:
		albedo, normalMap, err := b.convertSurface(m.Albedo.Value, m.Normal)
		if err != nil {
			return nil, fmt.Errorf("metal: %w", err)
		}
		return material.NewTexturedMetal(albedo, normalMap, m.Fuzz), nil

	case *model.Glass:
		albedo, normalMap, err := b.convertSurface(m.Albedo.Value, m.Normal)
		if err != nil {
			return nil, fmt.Errorf("glass: %w", err)
		}
		return material.NewTintedDielectric(albedo, normalMap, m.IndexOfRefraction), nil

	case *model.Plastic:
		albedo, normalMap, err := b.convertSurface(m.AlbedoOrDefault(), m.Normal)
		if err != nil {
			return nil, fmt.Errorf("plastic: %w", err)
		}
		return material.NewPlastic(albedo, normalMap, m.GlossinessOrDefault()), nil

	case *model.Light:
		color := m.EmittedColor().Vec3()
		if m.AttenuationHalfLength != nil {
			return material.NewAttenuatedEmissive(color, *m.AttenuationHalfLength), nil
		}
		return material.NewEmissive(color), nil

	case *model.Blend:
		first, err := b.convertMaterial(m.First.Value)
		if err != nil {
			return nil, fmt.Errorf("blend first: %w", err)
		}
		second, err := b.convertMaterial(m.Second.Value)
		if err != nil {
			return nil, fmt.Errorf("blend second: %w", err)
		}
		return material.NewMix(first, second, m.BlendFactor), nil

	default:
		return nil, fmt.Errorf("unsupported material %T", node)
	}
}

// convertSurface converts the albedo texture and optional normal map shared
// by the scattering materials
func (b *sceneBuilder) convertSurface(albedo model.Texture, normal *model.NormalTexture) (material.ColorSource, *material.NormalMap, error) {
	source, err := b.convertTexture(albedo)
	if err != nil {
		return nil, nil, err
	}
	if normal == nil {
		return source, nil, nil
	}
	normalMap, err := b.loadNormalMap(normal.File)
	if err != nil {
		return nil, nil, err
	}
	return source, normalMap, nil
}

func (b *sceneBuilder) convertTexture(node model.Texture) (material.ColorSource, error) {
	switch t := node.(type) {
	case nil:
		return material.NewSolidColor(core.Splat(1)), nil
	case *model.ColorTexture:
		return material.NewSolidColor(t.Color.Vec3()), nil
	case *model.ImageTexture:
		img, err := b.image(t.File)
		if err != nil {
			return nil, err
		}
		return material.NewImageTexture(img.Width, img.Height, img.Pixels), nil
	default:
		return nil, fmt.Errorf("unsupported texture %T", node)
	}
}

func (b *sceneBuilder) loadNormalMap(file string) (*material.NormalMap, error) {
	img, err := b.image(file)
	if err != nil {
		return nil, err
	}
	return material.NewNormalMap(img.Width, img.Height, img.Pixels), nil
}

// image loads an image file once per Compile call
func (b *sceneBuilder) image(file string) (*loaders.ImageData, error) {
	path, err := b.resolve(file)
	if err != nil {
		return nil, err
	}
	if img, ok := b.textures[path]; ok {
		return img, nil
	}
	img, err := b.loadImage(path)
	if err != nil {
		return nil, err
	}
	b.textures[path] = img
	return img, nil
}

// resolve expands ~ and makes relative paths relative to the base directory
func (c *Compiler) resolve(file string) (string, error) {
	path, err := homedir.Expand(file)
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", file, err)
	}
	if !filepath.IsAbs(path) && c.baseDir != "" {
		path = filepath.Join(c.baseDir, path)
	}
	return path, nil
}

// modelKey is everything that affects a loaded model
type modelKey struct {
	Path            string                                `yaml:"path"`
	Name            string                                `yaml:"name"`
	Material        model.Variant[model.Material]         `yaml:"material"`
	Transformations []model.Variant[model.Transformation] `yaml:"transformations"`
}

// convertModel loads a mesh through the model cache. A failed load is not
// cached, so a fixed file is picked up by the next compile.
func (b *sceneBuilder) convertModel(m *model.Model) (geometry.Shape, error) {
	folder, err := b.resolve(m.Path)
	if err != nil {
		return nil, err
	}
	defaultMaterial := m.MaterialOrDefault()

	fp, err := modelcache.NewFingerprint(modelKey{
		Path:            folder,
		Name:            m.Name,
		Material:        model.Of(defaultMaterial),
		Transformations: m.Transformations,
	})
	if err != nil {
		return nil, err
	}

	return b.cache.GetOrCompute(fp, func() (geometry.Shape, error) {
		file := filepath.Join(folder, m.Name)
		mesh, err := b.loadMesh(file)
		if err != nil {
			return nil, err
		}

		mat, err := b.convertMaterial(defaultMaterial)
		if err != nil {
			return nil, err
		}
		faceMaterials, err := b.convertMeshMaterials(mesh)
		if err != nil {
			return nil, err
		}

		var transform *core.Transform
		if len(m.Transformations) > 0 {
			t := model.Compose(m.Transformations)
			transform = &t
		}

		shape, err := geometry.NewTriangleMesh(mesh.Vertices, mesh.Faces, mat, &geometry.TriangleMeshOptions{
			Normals:   mesh.Normals,
			UVs:       mesh.UVs,
			Materials: faceMaterials,
			Transform: transform,
		})
		if err != nil {
			return nil, &loaders.LoadError{Path: file, Err: err}
		}

		b.logger.Info("loaded model", "file", file, "triangles", shape.GetTriangleCount())
		return shape, nil
	})
}

// convertMeshMaterials returns the per-triangle materials declared by the
// mesh file, nil entries falling back to the model material
func (b *sceneBuilder) convertMeshMaterials(mesh *loaders.Mesh) ([]material.Material, error) {
	if mesh.FaceMaterials == nil {
		return nil, nil
	}

	converted := make([]material.Material, len(mesh.Materials))
	for i, mm := range mesh.Materials {
		mat, err := b.convertMeshMaterial(mm)
		if err != nil {
			return nil, fmt.Errorf("material %s: %w", mm.Name, err)
		}
		converted[i] = mat
	}

	faceMaterials := make([]material.Material, len(mesh.FaceMaterials))
	for i, index := range mesh.FaceMaterials {
		if index >= 0 && index < len(converted) {
			faceMaterials[i] = converted[index]
		}
	}
	return faceMaterials, nil
}

func (b *sceneBuilder) convertMeshMaterial(mm loaders.MeshMaterial) (material.Material, error) {
	if !mm.Emission.NearZero() {
		return material.NewEmissive(mm.Emission), nil
	}

	var albedo material.ColorSource = material.NewSolidColor(mm.Diffuse)
	if mm.DiffuseMap != "" {
		img, err := b.image(mm.DiffuseMap)
		if err != nil {
			return nil, err
		}
		albedo = material.NewImageTexture(img.Width, img.Height, img.Pixels)
	}

	var normalMap *material.NormalMap
	if mm.NormalMap != "" {
		var err error
		if normalMap, err = b.loadNormalMap(mm.NormalMap); err != nil {
			return nil, err
		}
	}

	if mm.Dissolve < 1 {
		return material.NewTintedDielectric(albedo, normalMap, mm.IOR), nil
	}
	return material.NewTexturedLambertian(albedo, normalMap), nil
}
