// Package session runs scene renders in the background and keeps the
// latest progress of the current render available without blocking.
package session

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/df07/go-scene-preview/pkg/compiler"
	"github.com/df07/go-scene-preview/pkg/renderer"
)

// State is the state of a Controller
type State int

const (
	Idle State = iota
	Rendering
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Compiler turns scene text into a renderer scene
type Compiler interface {
	CompileSource(text string, frameIndex uint, target compiler.Dimensions) (*renderer.Scene, error)
}

// Engine renders a scene, sending progress on out and closing it when done.
// Cancelling ctx aborts the render.
type Engine interface {
	RayTrace(ctx context.Context, scene *renderer.Scene, out chan<- renderer.Progress) error
}

// Message is relayed from a render job to the controller. It carries either
// a rendered sample or the error that ended the job.
type Message struct {
	Progress renderer.Progress
	Err      error
}

// Snapshot is the visible state of the session
type Snapshot struct {
	State             State
	Image             *image.RGBA // Last published image, kept across renders and errors
	Progress          float64
	FPS               float64
	EstimatedTimeLeft time.Duration
	Sample            int
	Err               error  // Set while Errored
	Generation        uint64 // Incremented for every started render
}

// job is one background render
type job struct {
	cancel   context.CancelFunc
	messages <-chan Message
}

// Controller starts, replaces and aborts background renders. At most one
// job is current; messages from a replaced job are never read.
type Controller struct {
	compiler Compiler
	engine   Engine
	logger   *slog.Logger
	buffer   int

	mu       sync.Mutex
	job      *job
	requests uint64 // Bumped by RequestRender and Abort
	snapshot Snapshot
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger, slog.Default otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithMessageBuffer sets how many messages a job may queue before the
// renderer waits for Poll
func WithMessageBuffer(n int) Option {
	return func(c *Controller) { c.buffer = n }
}

// New creates an idle controller
func New(compiler Compiler, engine Engine, opts ...Option) *Controller {
	c := &Controller{
		compiler: compiler,
		engine:   engine,
		logger:   slog.Default(),
		buffer:   16,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestRender compiles source and starts rendering it, replacing any
// current render. A compile failure moves the controller to Errored and is
// returned; no job is started for it. The controller stays responsive while
// source compiles; a later RequestRender or Abort supersedes this request.
func (c *Controller) RequestRender(source string, target compiler.Dimensions) error {
	c.mu.Lock()
	if c.job != nil {
		c.logger.Debug("replacing current render", "generation", c.snapshot.Generation)
		c.job.cancel()
		c.job = nil
	}
	c.requests++
	request := c.requests
	c.mu.Unlock()

	scene, err := c.compiler.CompileSource(source, 0, target)

	c.mu.Lock()
	defer c.mu.Unlock()
	if request != c.requests {
		c.logger.Debug("render request superseded while compiling")
		return err
	}
	if err != nil {
		c.logger.Warn("scene did not compile", "error", err)
		c.snapshot.State = Errored
		c.snapshot.Err = err
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.job = &job{cancel: cancel, messages: c.start(ctx, scene)}
	c.snapshot.State = Rendering
	c.snapshot.Err = nil
	c.snapshot.Progress = 0
	c.snapshot.FPS = 0
	c.snapshot.EstimatedTimeLeft = 0
	c.snapshot.Sample = 0
	c.snapshot.Generation++

	c.logger.Info("render started",
		"generation", c.snapshot.Generation, "width", scene.Width, "height", scene.Height,
		"samples", scene.SamplesPerPixel)
	return nil
}

// start runs the engine and a relay goroutine that forwards its progress.
// The returned channel is closed after the engine has returned.
func (c *Controller) start(ctx context.Context, scene *renderer.Scene) <-chan Message {
	progress := make(chan renderer.Progress)
	result := make(chan error, 1)
	messages := make(chan Message, c.buffer)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- &renderer.EngineError{Err: fmt.Errorf("engine panicked: %v", r)}
			}
		}()
		result <- c.engine.RayTrace(ctx, scene, progress)
	}()

	go func() {
		defer close(messages)
		for {
			select {
			case p, ok := <-progress:
				if !ok {
					progress = nil // Wait for the result
					continue
				}
				select {
				case messages <- Message{Progress: p}:
				case <-ctx.Done():
					drain(progress, result)
					return
				}
			case err := <-result:
				if err == nil || ctx.Err() != nil {
					return
				}
				select {
				case messages <- Message{Err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	return messages
}

// drain discards progress until the engine has returned
func drain(progress <-chan renderer.Progress, result <-chan error) {
	for {
		select {
		case <-progress:
		case <-result:
			return
		}
	}
}

// Poll applies every message the current job has queued, without waiting.
// It reports whether the snapshot changed.
func (c *Controller) Poll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for c.job != nil {
		select {
		case msg, ok := <-c.job.messages:
			if !ok {
				c.finish()
				return true
			}
			c.apply(msg)
			changed = true
		default:
			return changed
		}
	}
	return changed
}

// apply updates the snapshot from one message of the current job
func (c *Controller) apply(msg Message) {
	if msg.Err != nil {
		c.logger.Error("render failed", "generation", c.snapshot.Generation, "error", msg.Err)
		c.job.cancel()
		c.job = nil
		c.snapshot.State = Errored
		c.snapshot.Err = msg.Err
		return
	}

	p := msg.Progress
	if p.Image != nil {
		c.snapshot.Image = p.Image
	}
	c.snapshot.Progress = max(c.snapshot.Progress, p.Progress)
	if p.FPS > 0 {
		c.snapshot.FPS = p.FPS
	}
	c.snapshot.EstimatedTimeLeft = p.EstimatedTimeLeft
	c.snapshot.Sample = p.Sample
}

// finish ends the current job after its channel closed
func (c *Controller) finish() {
	c.logger.Info("render finished", "generation", c.snapshot.Generation, "progress", c.snapshot.Progress)
	c.job.cancel()
	c.job = nil
	c.snapshot.State = Idle
}

// Abort stops the current render, keeping its last image
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++
	if c.snapshot.State != Rendering {
		return
	}
	c.logger.Info("render aborted", "generation", c.snapshot.Generation)
	if c.job != nil {
		c.job.cancel()
		c.job = nil
	}
	c.snapshot.State = Idle
}

// DismissError returns an Errored controller to Idle
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot.State == Errored {
		c.snapshot.State = Idle
		c.snapshot.Err = nil
	}
}

// Snapshot returns a copy of the visible state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.State
}
