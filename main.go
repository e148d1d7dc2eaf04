package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/df07/go-scene-preview/pkg/compiler"
	"github.com/df07/go-scene-preview/pkg/config"
	"github.com/df07/go-scene-preview/pkg/geometry"
	"github.com/df07/go-scene-preview/pkg/logx"
	"github.com/df07/go-scene-preview/pkg/model"
	"github.com/df07/go-scene-preview/pkg/modelcache"
	"github.com/df07/go-scene-preview/pkg/renderer"
	"github.com/df07/go-scene-preview/pkg/template"
	"golang.org/x/sync/errgroup"
)

// parallelFrames is how many frames render at the same time
const parallelFrames = 2

// options are the parsed command line
type options struct {
	scenePath  string
	configPath string
	outDir     string
	width      int
	height     int
	frames     uint
	level      slog.Level
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("scene-render", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "TOML config file (default "+config.DefaultPath+" if present)")
	fs.StringVar(&opts.outDir, "out", "output", "Directory for the rendered frames")
	fs.IntVar(&opts.width, "width", 0, "Render target width (default from config)")
	fs.IntVar(&opts.height, "height", 0, "Render target height (default from config)")
	fs.UintVar(&opts.frames, "frames", 1, "Number of frames to render, frameIndex runs from 0")
	verbose := fs.Bool("v", false, "Log progress")
	veryVerbose := fs.Bool("vv", false, "Log everything")
	quiet := fs.Bool("q", false, "Only log errors")
	fs.Usage = func() {
		fmt.Fprintln(output, "Scene Renderer")
		fmt.Fprintln(output, "Usage: scene-render [options] scene.yaml")
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Renders every frame of a scene template to frame_<index>.png.")
		fmt.Fprintln(output)
		fmt.Fprintln(output, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, fmt.Errorf("expected one scene file, got %d arguments", fs.NArg())
	}
	opts.scenePath = fs.Arg(0)
	opts.level = logx.LevelFromFlags(*veryVerbose, *verbose, *quiet)
	if opts.frames == 0 {
		return opts, fmt.Errorf("frames must be at least 1")
	}
	return opts, nil
}

// loadConfig reads the config file and applies the size flags over it
func loadConfig(opts options) (config.Config, error) {
	var cfg config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return cfg, err
	}

	if opts.width != 0 {
		cfg.Render.Width = opts.width
	}
	if opts.height != 0 {
		cfg.Render.Height = opts.height
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}
	logger := logx.Setup(opts.level)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(opts.scenePath)
	if err != nil {
		return fmt.Errorf("failed to read scene: %w", err)
	}
	tmpl, err := template.Parse(string(source))
	if err != nil {
		return fmt.Errorf("failed to parse scene template: %w", err)
	}

	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cache := modelcache.New[geometry.Shape](cfg.Cache.Capacity)
	defer cache.Purge()
	comp := compiler.New(cache,
		compiler.WithBaseDir(filepath.Dir(opts.scenePath)),
		compiler.WithLogger(logger))
	engine := renderer.NewEngine(renderer.ProgressiveConfig{
		TileSize:       cfg.Render.TileSize,
		NumWorkers:     cfg.Render.Workers,
		FinalImageOnly: true,
	}, logger)
	target := compiler.Dimensions{Width: cfg.Render.Width, Height: cfg.Render.Height}

	startTime := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelFrames)
	for frame := uint(0); frame < opts.frames; frame++ {
		if gctx.Err() != nil {
			break
		}

		// Compile on this goroutine so scene errors stop the batch in frame order
		scene, err := compileFrame(comp, tmpl, frame, target)
		if err != nil {
			_ = g.Wait()
			return fmt.Errorf("frame %d: %w", frame, err)
		}

		g.Go(func() error {
			filename := filepath.Join(opts.outDir, fmt.Sprintf("frame_%08d.png", frame))
			if err := renderFrame(gctx, engine, scene, filename, logger); err != nil {
				return fmt.Errorf("frame %d: %w", frame, err)
			}
			logger.Info("frame saved", "frame", frame, "file", filename)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logx.Success(stdout, "Rendered %d frame(s) to %s in %v", opts.frames, opts.outDir, time.Since(startTime).Round(time.Millisecond))
	return nil
}

func compileFrame(comp *compiler.Compiler, tmpl *template.Template, frame uint, target compiler.Dimensions) (*renderer.Scene, error) {
	expanded, err := tmpl.Execute(frame)
	if err != nil {
		return nil, &compiler.Error{Stage: compiler.StageTemplate, Err: err}
	}
	parsed, err := model.Parse(expanded)
	if err != nil {
		return nil, &compiler.Error{Stage: compiler.StageParse, Err: err}
	}
	return comp.Compile(parsed, target)
}

// renderFrame renders scene to completion and saves the final image as PNG
func renderFrame(ctx context.Context, engine *renderer.Engine, scene *renderer.Scene, filename string, logger *slog.Logger) error {
	progress := make(chan renderer.Progress)
	result := make(chan error, 1)
	go func() { result <- engine.RayTrace(ctx, scene, progress) }()

	var final *image.RGBA
	for p := range progress {
		logger.Debug("sample rendered", "file", filepath.Base(filename), "sample", p.Sample,
			"progress", fmt.Sprintf("%.0f%%", p.Progress*100), "eta", p.EstimatedTimeLeft.Round(time.Second))
		if p.Image != nil {
			final = p.Image
		}
	}
	if err := <-result; err != nil {
		return err
	}
	if final == nil {
		return errors.New("renderer produced no image")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer file.Close()

	if err := png.Encode(file, final); err != nil {
		return fmt.Errorf("failed to save PNG: %w", err)
	}
	return file.Close()
}
