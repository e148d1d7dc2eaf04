package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/df07/go-scene-preview/pkg/config"
	"github.com/df07/go-scene-preview/pkg/logx"
	"github.com/df07/go-scene-preview/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 0, "Port to serve on (overrides the config file)")
	configPath := flag.String("config", "", "Config file (default "+config.DefaultPath+")")
	watch := flag.String("watch", "", "Scene file to render and re-render whenever it is saved")
	static := flag.String("static", "", "Directory of static files to serve at /")
	verbose := flag.Bool("v", false, "Verbose output")
	veryVerbose := flag.Bool("vv", false, "Very verbose output")
	quiet := flag.Bool("q", false, "Only print errors")
	flag.Parse()

	logger := logx.Setup(logx.LevelFromFlags(*veryVerbose, *verbose, *quiet))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *static != "" {
		cfg.Server.StaticDir = *static
	}
	if *watch != "" {
		cfg.Watch.Enabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseDir := "."
	if *watch != "" {
		baseDir = filepath.Dir(*watch)
	}
	webServer := server.NewServer(cfg, logger, baseDir)

	if cfg.Watch.Enabled && *watch != "" {
		if err := webServer.LoadFile(*watch); err != nil {
			logger.Warn("initial scene did not render", "error", err)
		}
		if err := webServer.Watch(ctx, *watch, time.Duration(cfg.Watch.Debounce)); err != nil {
			logger.Error("failed to watch scene", "error", err)
			os.Exit(1)
		}
	}

	fmt.Fprintf(os.Stderr, "Scene Preview Server\nVisit http://localhost:%d to start rendering\n", cfg.Server.Port)

	if err := webServer.Start(ctx); err != nil {
		logger.Error("error starting server", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}
