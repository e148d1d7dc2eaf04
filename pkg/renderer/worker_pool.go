package renderer

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// TileTask represents a tile rendering task for the worker pool
type TileTask struct {
	Ctx        context.Context
	Tile       *Tile
	TaskID     int            // Index of the tile, for matching results
	PixelStats [][]PixelStats // Shared pixel stats array to write to
}

// TileResult contains the result from rendering a tile
type TileResult struct {
	TaskID int
	Stats  RenderStats
	Error  error
}

// WorkerPool manages parallel tile rendering
type WorkerPool struct {
	scene       *Scene
	taskQueue   chan TileTask
	resultQueue chan TileResult
	numWorkers  int
	wg          sync.WaitGroup
}

// NewWorkerPool creates a worker pool with the specified number of workers
func NewWorkerPool(scene *Scene, numTiles, numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	return &WorkerPool{
		scene:       scene,
		taskQueue:   make(chan TileTask, numTiles),   // Buffer for all tiles of a pass
		resultQueue: make(chan TileResult, numTiles), // Buffer for all results of a pass
		numWorkers:  numWorkers,
	}
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.run()
	}
}

// Stop gracefully shuts down all workers
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue) // No more tasks
	wp.wg.Wait()        // Wait for workers to finish
	close(wp.resultQueue)
}

// SubmitTask submits a tile task to the worker pool
func (wp *WorkerPool) SubmitTask(task TileTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed tile result
func (wp *WorkerPool) GetResult() (TileResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// run is the main worker loop
func (wp *WorkerPool) run() {
	defer wp.wg.Done()

	for task := range wp.taskQueue {
		// Cancellation is observed between tiles
		if err := task.Ctx.Err(); err != nil {
			wp.resultQueue <- TileResult{TaskID: task.TaskID, Error: err}
			continue
		}
		wp.resultQueue <- wp.renderTask(task)
	}
}

// renderTask renders one sample for every pixel of the tile. Each tile has
// non-overlapping bounds, so writing to the shared pixel stats is safe.
func (wp *WorkerPool) renderTask(task TileTask) (result TileResult) {
	result.TaskID = task.TaskID
	defer func() {
		if r := recover(); r != nil {
			result.Error = &EngineError{Err: fmt.Errorf("tile %d panicked: %v", task.Tile.ID, r)}
		}
	}()
	result.Stats = renderTileSample(wp.scene, task.Tile, task.PixelStats)
	return result
}

// renderTileSample adds one jittered sample to each pixel of the tile
func renderTileSample(scene *Scene, tile *Tile, pixelStats [][]PixelStats) RenderStats {
	bounds := tile.Bounds
	random := tile.Random
	stats := RenderStats{TotalPixels: bounds.Dx() * bounds.Dy()}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// Image rows run top to bottom, camera t runs bottom to top
			s := (float64(x) + random.Float64()) / float64(scene.Width)
			t := 1 - (float64(y)+random.Float64())/float64(scene.Height)

			color := scene.Shader.Shade(scene.Camera.GetRay(s, t, random), scene, random)
			if !color.IsFinite() {
				stats.DroppedSamples++
				continue
			}
			pixelStats[y][x].AddSample(color)
			stats.TotalSamples++
		}
	}

	stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	return stats
}
