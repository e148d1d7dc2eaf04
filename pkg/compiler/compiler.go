// Package compiler turns a validated scene description into a renderer
// scene, resolving materials, textures and meshes along the way.
package compiler

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/df07/go-scene-preview/pkg/geometry"
	"github.com/df07/go-scene-preview/pkg/loaders"
	"github.com/df07/go-scene-preview/pkg/model"
	"github.com/df07/go-scene-preview/pkg/modelcache"
	"github.com/df07/go-scene-preview/pkg/renderer"
	"github.com/df07/go-scene-preview/pkg/template"
)

// Dimensions is the size of the render target, used for the screen relative
// width_height variants
type Dimensions struct {
	Width  int
	Height int
}

// Stages reported by Error
const (
	StageTemplate = "template"
	StageParse    = "parse"
	StageCompile  = "compile"
)

// Error wraps any failure to turn scene text into a renderer scene
type Error struct {
	Stage string // StageTemplate, StageParse or StageCompile
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("scene %s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// MeshLoader loads the triangle data of a model file
type MeshLoader func(filename string) (*loaders.Mesh, error)

// Compiler builds renderer scenes. It is safe for concurrent use; the only
// state shared between calls is the model cache.
type Compiler struct {
	cache     *modelcache.Cache[geometry.Shape]
	loadMesh  MeshLoader
	loadImage func(filename string) (*loaders.ImageData, error)
	baseDir   string
	logger    *slog.Logger
}

// Option configures a Compiler
type Option func(*Compiler)

// WithMeshLoader replaces the file based mesh loader
func WithMeshLoader(loader MeshLoader) Option {
	return func(c *Compiler) { c.loadMesh = loader }
}

// WithBaseDir resolves relative model and texture paths against dir instead
// of the working directory. dir is made absolute, so paths a mesh loader has
// already joined to its model folder are not joined again.
func WithBaseDir(dir string) Option {
	return func(c *Compiler) {
		if dir != "" {
			if abs, err := filepath.Abs(dir); err == nil {
				dir = abs
			}
		}
		c.baseDir = dir
	}
}

// WithLogger sets the logger, slog.Default otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// New creates a compiler that memoizes meshes in cache. A nil cache gets a
// private one with the default capacity.
func New(cache *modelcache.Cache[geometry.Shape], opts ...Option) *Compiler {
	if cache == nil {
		cache = modelcache.New[geometry.Shape](modelcache.DefaultCapacity)
	}
	c := &Compiler{
		cache:     cache,
		loadMesh:  loaders.LoadMesh,
		loadImage: loaders.LoadImage,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileSource expands the template in text for frameIndex, parses the
// result and compiles it
func (c *Compiler) CompileSource(text string, frameIndex uint, target Dimensions) (*renderer.Scene, error) {
	expanded, err := template.Expand(text, frameIndex)
	if err != nil {
		return nil, &Error{Stage: StageTemplate, Err: err}
	}
	scene, err := model.Parse(expanded)
	if err != nil {
		return nil, &Error{Stage: StageParse, Err: err}
	}
	return c.Compile(scene, target)
}

// Compile builds the renderer scene for a parsed scene description. Either
// the whole scene is built or an error is returned.
func (c *Compiler) Compile(scene *model.Scene, target Dimensions) (*renderer.Scene, error) {
	b := &sceneBuilder{Compiler: c, textures: make(map[string]*loaders.ImageData)}
	out, err := b.build(scene, target)
	if err != nil {
		return nil, &Error{Stage: StageCompile, Err: err}
	}
	return out, nil
}
