package renderer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"
)

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	TileSize       int  // Size of each tile (32x32 recommended)
	NumWorkers     int  // Number of parallel workers (0 = use CPU count)
	FinalImageOnly bool // Only publish the image of the last sample
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		TileSize:   32,
		NumWorkers: 0, // Auto-detect CPU count
	}
}

// Progress is sent by the engine after every completed sample pass
type Progress struct {
	Progress          float64       // Fraction of samples done, in [0,1]
	Image             *image.RGBA   // Current image, nil when not published this pass
	FPS               float64       // Passes per second, 0 when not yet known
	EstimatedTimeLeft time.Duration // Remaining time extrapolated from the average pass
	Sample            int           // Samples per pixel accumulated so far
	Stats             RenderStats
}

// Engine renders scenes progressively, one sample per pixel per pass
type Engine struct {
	config ProgressiveConfig
	logger *slog.Logger
}

// NewEngine creates a new progressive engine. A nil logger uses slog.Default.
func NewEngine(config ProgressiveConfig, logger *slog.Logger) *Engine {
	if config.TileSize <= 0 {
		config.TileSize = DefaultProgressiveConfig().TileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{config: config, logger: logger}
}

// RayTrace renders scene and sends a Progress value on out after each pass.
// It closes out before returning. Cancelling ctx stops the render between
// tiles and returns ctx.Err().
func (e *Engine) RayTrace(ctx context.Context, scene *Scene, out chan<- Progress) error {
	defer close(out)

	if err := scene.Validate(); err != nil {
		return &EngineError{Err: err}
	}

	r := newProgressiveRender(scene, e.config)
	r.workerPool.Start()
	defer r.workerPool.Stop()

	e.logger.Debug("starting progressive render",
		"width", scene.Width, "height", scene.Height,
		"samples", scene.SamplesPerPixel, "workers", r.workerPool.GetNumWorkers())

	startTime := time.Now()
	lastPublished := startTime
	for sample := 1; sample <= scene.SamplesPerPixel; sample++ {
		if err := ctx.Err(); err != nil {
			e.logger.Debug("render cancelled", "sample", sample)
			return err
		}

		if err := r.renderPass(ctx); err != nil {
			return err
		}

		now := time.Now()
		elapsed := now.Sub(startTime)
		perPass := elapsed / time.Duration(sample)
		isLast := sample == scene.SamplesPerPixel

		progress := Progress{
			Progress:          float64(sample) / float64(scene.SamplesPerPixel),
			EstimatedTimeLeft: perPass * time.Duration(scene.SamplesPerPixel-sample),
			Sample:            sample,
		}
		if elapsed > 0 {
			progress.FPS = float64(sample) / elapsed.Seconds()
		}

		publish := isLast
		if !e.config.FinalImageOnly {
			publish = publish || scene.PreviewInterval == 0 || now.Sub(lastPublished) >= scene.PreviewInterval
		}
		if publish {
			progress.Image, progress.Stats = r.assembleImage(isLast)
			lastPublished = now
			if isLast && e.logger.Enabled(ctx, slog.LevelDebug) {
				e.logger.Debug("final image",
					"luminance", CalculateAverageLuminance(progress.Image),
					"dropped_samples", progress.Stats.DroppedSamples)
			}
		}

		select {
		case out <- progress:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.logger.Debug("render finished", "duration", time.Since(startTime))
	return nil
}

// progressiveRender is the state of one RayTrace call
type progressiveRender struct {
	scene      *Scene
	tiles      []*Tile
	pixelStats [][]PixelStats // Shared pixel statistics array (global image coordinates)
	workerPool *WorkerPool
}

func newProgressiveRender(scene *Scene, config ProgressiveConfig) *progressiveRender {
	tiles := NewTileGrid(scene.Width, scene.Height, config.TileSize)

	pixelStats := make([][]PixelStats, scene.Height)
	for y := range pixelStats {
		pixelStats[y] = make([]PixelStats, scene.Width)
	}

	return &progressiveRender{
		scene:      scene,
		tiles:      tiles,
		pixelStats: pixelStats,
		workerPool: NewWorkerPool(scene, len(tiles), config.NumWorkers),
	}
}

// renderPass adds one sample to every pixel of the image
func (r *progressiveRender) renderPass(ctx context.Context) error {
	for i, tile := range r.tiles {
		r.workerPool.SubmitTask(TileTask{
			Ctx:        ctx,
			Tile:       tile,
			TaskID:     i,
			PixelStats: r.pixelStats,
		})
	}

	// Every submitted tile must be collected before the next pass
	var firstErr error
	for range r.tiles {
		result, ok := r.workerPool.GetResult()
		if !ok {
			return &EngineError{Err: fmt.Errorf("worker pool closed unexpectedly")}
		}
		if result.Error != nil {
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}
		r.tiles[result.TaskID].PassesCompleted++
	}
	return firstErr
}

// assembleImage creates an image from the current pixel stats. Post
// processors only run on the final image.
func (r *progressiveRender) assembleImage(final bool) (*image.RGBA, RenderStats) {
	width, height := r.scene.Width, r.scene.Height
	img := NewFloatImage(width, height)
	stats := RenderStats{TotalPixels: width * height}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixel := &r.pixelStats[y][x]
			img.Set(x, y, pixel.GetColor())
			stats.TotalSamples += pixel.SampleCount
		}
	}
	stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)

	if final {
		for _, pp := range r.scene.PostProcessors {
			img = pp.Process(img)
		}
	}
	return img.ToRGBA(), stats
}
