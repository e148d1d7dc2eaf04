package session

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/df07/go-scene-preview/pkg/compiler"
	"github.com/df07/go-scene-preview/pkg/loaders"
	"github.com/df07/go-scene-preview/pkg/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var target = compiler.Dimensions{Width: 16, Height: 12}

// fakeCompiler returns an empty scene, or err when set
type fakeCompiler struct {
	err   error
	calls int
}

func (f *fakeCompiler) CompileSource(text string, frameIndex uint, target compiler.Dimensions) (*renderer.Scene, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &renderer.Scene{Width: target.Width, Height: target.Height, SamplesPerPixel: 1}, nil
}

// fakeJob is one RayTrace call of fakeEngine, driven by the test
type fakeJob struct {
	ctx    context.Context
	out    chan<- renderer.Progress
	finish chan error
}

// send delivers a progress value, giving up once the job is cancelled
func (j *fakeJob) send(p renderer.Progress) bool {
	select {
	case j.out <- p:
		return true
	case <-j.ctx.Done():
		return false
	}
}

type fakeEngine struct {
	jobs chan *fakeJob
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{jobs: make(chan *fakeJob, 4)}
}

func (e *fakeEngine) RayTrace(ctx context.Context, scene *renderer.Scene, out chan<- renderer.Progress) error {
	defer close(out)
	j := &fakeJob{ctx: ctx, out: out, finish: make(chan error)}
	e.jobs <- j
	return <-j.finish
}

func (e *fakeEngine) next(t *testing.T) *fakeJob {
	t.Helper()
	select {
	case j := <-e.jobs:
		return j
	case <-time.After(5 * time.Second):
		t.Fatal("engine was not started")
		return nil
	}
}

// pollUntil polls c until cond holds
func pollUntil(t *testing.T, c *Controller, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		c.Poll()
		return cond(c.Snapshot())
	}, 5*time.Second, time.Millisecond)
	return c.Snapshot()
}

func testImage() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 2, 2))
}

func TestController_InitialState(t *testing.T) {
	c := New(&fakeCompiler{}, newFakeEngine())
	assert.Equal(t, Idle, c.State())
	assert.False(t, c.Poll())
	assert.Equal(t, Snapshot{}, c.Snapshot())
}

func TestController_ProgressUpdatesSnapshot(t *testing.T) {
	engine := newFakeEngine()
	c := New(&fakeCompiler{}, engine)
	require.NoError(t, c.RequestRender("scene", target))
	assert.Equal(t, Rendering, c.State())
	j := engine.next(t)

	img := testImage()
	require.True(t, j.send(renderer.Progress{Progress: 0.5, Image: img, FPS: 10, EstimatedTimeLeft: time.Second, Sample: 1}))
	s := pollUntil(t, c, func(s Snapshot) bool { return s.Progress == 0.5 })
	assert.Same(t, img, s.Image)
	assert.Equal(t, 10.0, s.FPS)
	assert.Equal(t, time.Second, s.EstimatedTimeLeft)

	// Missing image and fps keep the previous values, progress never goes back
	require.True(t, j.send(renderer.Progress{Progress: 0.25, EstimatedTimeLeft: 3 * time.Second, Sample: 2}))
	s = pollUntil(t, c, func(s Snapshot) bool { return s.Sample == 2 })
	assert.Same(t, img, s.Image)
	assert.Equal(t, 0.5, s.Progress)
	assert.Equal(t, 10.0, s.FPS)
	assert.Equal(t, 3*time.Second, s.EstimatedTimeLeft)
	assert.Equal(t, Rendering, s.State)

	require.True(t, j.send(renderer.Progress{Progress: 1, Sample: 3}))
	j.finish <- nil
	s = pollUntil(t, c, func(s Snapshot) bool { return s.State == Idle })
	assert.Equal(t, 1.0, s.Progress)
	assert.NoError(t, s.Err)
}

func TestController_ReplacedJobIsIgnored(t *testing.T) {
	engine := newFakeEngine()
	c := New(&fakeCompiler{}, engine)

	require.NoError(t, c.RequestRender("first", target))
	first := engine.next(t)
	require.NoError(t, c.RequestRender("second", target))
	second := engine.next(t)
	assert.Equal(t, uint64(2), c.Snapshot().Generation)

	// The first job was cancelled, anything it still produces is dropped
	assert.Error(t, first.ctx.Err())
	assert.NoError(t, second.ctx.Err())
	first.send(renderer.Progress{Progress: 0.9, Image: testImage(), Sample: 9})
	first.finish <- errors.New("stale failure")

	img := testImage()
	require.True(t, second.send(renderer.Progress{Progress: 0.1, Image: img, Sample: 1}))
	s := pollUntil(t, c, func(s Snapshot) bool { return s.Sample == 1 })
	assert.Equal(t, 0.1, s.Progress)
	assert.Same(t, img, s.Image)
	assert.Equal(t, Rendering, s.State)

	second.finish <- nil
	s = pollUntil(t, c, func(s Snapshot) bool { return s.State == Idle })
	assert.Equal(t, 0.1, s.Progress)
	assert.NoError(t, s.Err)
}

func TestController_CompileErrorThenRecovery(t *testing.T) {
	engine := newFakeEngine()
	comp := &fakeCompiler{err: &compiler.Error{Stage: compiler.StageParse, Err: errors.New("bad yaml")}}
	c := New(comp, engine)

	err := c.RequestRender("broken", target)
	require.Error(t, err)
	s := c.Snapshot()
	assert.Equal(t, Errored, s.State)
	assert.Equal(t, err, s.Err)
	assert.Empty(t, engine.jobs, "no job is started for a compile failure")

	comp.err = nil
	require.NoError(t, c.RequestRender("fixed", target))
	assert.Equal(t, Rendering, c.State())
	assert.NoError(t, c.Snapshot().Err)
	engine.next(t).finish <- nil
	pollUntil(t, c, func(s Snapshot) bool { return s.State == Idle })
}

func TestController_CompileErrorCancelsRunningJob(t *testing.T) {
	engine := newFakeEngine()
	comp := &fakeCompiler{}
	c := New(comp, engine)

	require.NoError(t, c.RequestRender("good", target))
	j := engine.next(t)

	comp.err = errors.New("bad")
	require.Error(t, c.RequestRender("bad", target))
	assert.Error(t, j.ctx.Err())
	assert.Equal(t, Errored, c.State())
	j.finish <- context.Canceled
}

func TestController_EngineError(t *testing.T) {
	engine := newFakeEngine()
	c := New(&fakeCompiler{}, engine)
	require.NoError(t, c.RequestRender("scene", target))
	j := engine.next(t)

	img := testImage()
	require.True(t, j.send(renderer.Progress{Progress: 0.5, Image: img, Sample: 1}))
	engineErr := &renderer.EngineError{Err: errors.New("out of memory")}
	j.finish <- engineErr

	s := pollUntil(t, c, func(s Snapshot) bool { return s.State == Errored })
	assert.ErrorIs(t, s.Err, engineErr)
	assert.Same(t, img, s.Image, "last image stays visible after an error")
	assert.Error(t, j.ctx.Err())

	c.DismissError()
	s = c.Snapshot()
	assert.Equal(t, Idle, s.State)
	assert.NoError(t, s.Err)
}

type panickingEngine struct{}

func (panickingEngine) RayTrace(ctx context.Context, scene *renderer.Scene, out chan<- renderer.Progress) error {
	panic("engine bug")
}

func TestController_EnginePanic(t *testing.T) {
	c := New(&fakeCompiler{}, panickingEngine{})
	require.NoError(t, c.RequestRender("scene", target))

	s := pollUntil(t, c, func(s Snapshot) bool { return s.State == Errored })
	var engineErr *renderer.EngineError
	require.ErrorAs(t, s.Err, &engineErr)
	assert.Contains(t, s.Err.Error(), "engine bug")
}

func TestController_ChannelCloseWithoutMessageIsIdle(t *testing.T) {
	engine := newFakeEngine()
	c := New(&fakeCompiler{}, engine)
	require.NoError(t, c.RequestRender("scene", target))
	engine.next(t).finish <- nil

	s := pollUntil(t, c, func(s Snapshot) bool { return s.State == Idle })
	assert.Equal(t, 0.0, s.Progress)
	assert.NoError(t, s.Err)
}

func TestController_Abort(t *testing.T) {
	engine := newFakeEngine()
	c := New(&fakeCompiler{}, engine)
	require.NoError(t, c.RequestRender("scene", target))
	j := engine.next(t)

	c.Abort()
	assert.Equal(t, Idle, c.State())
	assert.Error(t, j.ctx.Err())
	j.send(renderer.Progress{Progress: 0.5})
	j.finish <- context.Canceled

	assert.False(t, c.Poll())
	assert.Equal(t, Idle, c.State())

	// Aborting when idle does nothing
	c.Abort()
	assert.Equal(t, Idle, c.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "rendering", Rendering.String())
	assert.Equal(t, "errored", Errored.String())
	assert.Equal(t, "State(7)", State(7).String())
}

const sphereScene = `render_configuration:
  samples_per_pixel: 3
  preview_interval_ms: 0
  shader:
    simple: {}
  width_height:
    custom:
      width: 8
      height: 6
camera:
  vertical_fov_degrees: 40
  aperture_size: 0
  look_from: "0, 0, 5"
  look_at: "0, 0, 0"
world:
  - sphere:
      center: "0, 0, 0"
      radius: 1
`

func newRealController() *Controller {
	engine := renderer.NewEngine(renderer.ProgressiveConfig{TileSize: 4, NumWorkers: 2}, nil)
	return New(compiler.New(nil), engine)
}

func TestController_EndToEnd(t *testing.T) {
	c := newRealController()
	require.NoError(t, c.RequestRender(sphereScene, target))

	s := pollUntil(t, c, func(s Snapshot) bool { return s.State != Rendering })
	assert.Equal(t, Idle, s.State)
	assert.Equal(t, 1.0, s.Progress)
	assert.Equal(t, 3, s.Sample)
	require.NotNil(t, s.Image)
	assert.Equal(t, image.Rect(0, 0, 8, 6), s.Image.Bounds())
}

func TestController_MissingModelThenRecovery(t *testing.T) {
	c := newRealController()
	dir := t.TempDir()
	missing := sphereScene + "  - model:\n      path: " + dir + "\n      name: missing.obj\n"

	err := c.RequestRender(missing, target)
	var loadErr *loaders.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, Errored, c.State())
	assert.ErrorAs(t, c.Snapshot().Err, &loadErr)

	// The same source renders once the model exists
	obj := "v -1 -1 0\nv 1 -1 0\nv 0 1 0\nf 1 2 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "missing.obj"), []byte(obj), 0o644))
	require.NoError(t, c.RequestRender(missing, target))
	s := pollUntil(t, c, func(s Snapshot) bool { return s.State != Rendering })
	assert.Equal(t, Idle, s.State)
	assert.Equal(t, 1.0, s.Progress)
	assert.NoError(t, s.Err)
	assert.Equal(t, uint64(1), s.Generation)
}

// blockingCompiler holds back compiles of slowSource until release is closed
type blockingCompiler struct {
	fakeCompiler
	started chan struct{}
	release chan struct{}
}

const slowSource = "slow"

func newBlockingCompiler() *blockingCompiler {
	return &blockingCompiler{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingCompiler) CompileSource(text string, frameIndex uint, target compiler.Dimensions) (*renderer.Scene, error) {
	if text == slowSource {
		close(b.started)
		<-b.release
	}
	return &renderer.Scene{Width: target.Width, Height: target.Height, SamplesPerPixel: 1}, nil
}

func TestController_ResponsiveWhileCompiling(t *testing.T) {
	tests := []struct {
		name      string
		during    func(t *testing.T, c *Controller, engine *fakeEngine)
		wantState State
		wantGen   uint64
		wantJob   bool // The slow request starts a render
	}{
		{
			name:      "request completes",
			during:    func(t *testing.T, c *Controller, engine *fakeEngine) {},
			wantState: Rendering,
			wantGen:   1,
			wantJob:   true,
		},
		{
			name: "newer request wins",
			during: func(t *testing.T, c *Controller, engine *fakeEngine) {
				require.NoError(t, c.RequestRender("fast", target))
				engine.next(t)
			},
			wantState: Rendering,
			wantGen:   1,
		},
		{
			name: "abort drops the request",
			during: func(t *testing.T, c *Controller, engine *fakeEngine) {
				c.Abort()
			},
			wantState: Idle,
			wantGen:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := newBlockingCompiler()
			engine := newFakeEngine()
			c := New(comp, engine)
			t.Cleanup(c.Abort)

			done := make(chan error, 1)
			go func() { done <- c.RequestRender(slowSource, target) }()
			<-comp.started

			snapshots := make(chan Snapshot, 1)
			go func() { snapshots <- c.Snapshot() }()
			select {
			case s := <-snapshots:
				assert.Equal(t, Idle, s.State)
			case <-time.After(time.Second):
				require.FailNow(t, "Snapshot blocked while compiling")
			}

			tt.during(t, c, engine)
			close(comp.release)
			require.NoError(t, <-done)

			s := c.Snapshot()
			assert.Equal(t, tt.wantState, s.State)
			assert.Equal(t, tt.wantGen, s.Generation)
			if tt.wantJob {
				engine.next(t)
			}
			select {
			case <-engine.jobs:
				assert.Fail(t, "a superseded request started a render")
			default:
			}
		})
	}
}
