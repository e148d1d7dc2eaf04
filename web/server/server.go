package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/df07/go-scene-preview/pkg/compiler"
	"github.com/df07/go-scene-preview/pkg/config"
	"github.com/df07/go-scene-preview/pkg/geometry"
	"github.com/df07/go-scene-preview/pkg/model"
	"github.com/df07/go-scene-preview/pkg/modelcache"
	"github.com/df07/go-scene-preview/pkg/renderer"
	"github.com/df07/go-scene-preview/pkg/session"
	"github.com/df07/go-scene-preview/pkg/template"
)

// maxSceneBytes bounds the body of a render request
const maxSceneBytes = 1 << 20

// Server hosts the live preview: it owns one render session and pushes its
// snapshots to browsers
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	cache      *modelcache.Cache[geometry.Shape]
	controller *session.Controller
	hub        *hub
	console    chan ConsoleMessage
	upgrader   websocket.Upgrader

	mu        sync.Mutex
	source    string
	target    compiler.Dimensions
	lastImage *image.RGBA // Image in the last broadcast snapshot
}

// NewServer creates a preview server. Log records written through the
// returned server's logger are also streamed to connected browsers.
// Relative model and texture paths resolve against baseDir.
func NewServer(cfg config.Config, logger *slog.Logger, baseDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	console := make(chan ConsoleMessage, 50)
	logger = slog.New(NewConsoleHandler(logger.Handler(), console))

	cache := modelcache.New[geometry.Shape](cfg.Cache.Capacity)
	comp := compiler.New(cache, compiler.WithBaseDir(baseDir), compiler.WithLogger(logger))
	engine := renderer.NewEngine(renderer.ProgressiveConfig{
		TileSize:   cfg.Render.TileSize,
		NumWorkers: cfg.Render.Workers,
	}, logger)

	return &Server{
		cfg:        cfg,
		logger:     logger,
		cache:      cache,
		controller: session.New(comp, engine, session.WithLogger(logger)),
		hub:        newHub(),
		console:    console,
		source:     model.DefaultScene,
		target:     compiler.Dimensions{Width: cfg.Render.Width, Height: cfg.Render.Height},
	}
}

// Logger returns the logger that also feeds the browser console
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Handler returns the HTTP routes of the preview
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Serve static files
	if s.cfg.Server.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.Server.StaticDir)))
	}

	// API endpoints
	mux.HandleFunc("POST /api/render", s.handleRender)
	mux.HandleFunc("POST /api/abort", s.handleAbort)
	mux.HandleFunc("POST /api/dismiss", s.handleDismiss)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/image", s.handleImage)
	mux.HandleFunc("GET /api/scene", s.handleScene)
	mux.HandleFunc("GET /api/help", s.handleHelp)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

// Start serves until ctx is cancelled. The default scene is rendered first
// unless a render was already requested.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.run(ctx)

	if snap := s.controller.Snapshot(); snap.Generation == 0 && snap.State == session.Idle {
		s.Render(s.Source(), s.Target())
	}

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting web server", "url", fmt.Sprintf("http://localhost%s", addr))
	err := httpServer.ListenAndServe()
	s.controller.Abort()
	s.cache.Purge()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// run polls the session and forwards console messages until ctx is done
func (s *Server) run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.cfg.Server.PollInterval))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.controller.Poll() {
				s.broadcastSnapshot(true)
			}
		case msg := <-s.console:
			s.broadcastConsole(msg)
		}
	}
}

// Render replaces the current scene and starts rendering it. The returned
// error is the compile failure, which is also kept in the snapshot.
func (s *Server) Render(source string, target compiler.Dimensions) error {
	s.mu.Lock()
	s.source = source
	s.target = target
	s.mu.Unlock()

	err := s.controller.RequestRender(source, target)
	s.broadcastSnapshot(false)
	return err
}

// Source returns the scene text last submitted for rendering
func (s *Server) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Target returns the screen size last submitted for rendering
func (s *Server) Target() compiler.Dimensions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRender compiles the posted scene text and starts rendering it
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSceneBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	target := s.Target()
	query := r.URL.Query()
	if target.Width, err = parseIntParam(query.Get("width"), target.Width, 1, config.MaxDimension-1); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid width: %v", err))
		return
	}
	if target.Height, err = parseIntParam(query.Get("height"), target.Height, 1, config.MaxDimension-1); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid height: %v", err))
		return
	}

	source := string(body)
	if strings.TrimSpace(source) == "" {
		source = s.Source()
	}
	if err := s.Render(source, target); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, newSnapshotResponse(s.controller.Snapshot(), false))
		return
	}
	writeJSON(w, http.StatusAccepted, newSnapshotResponse(s.controller.Snapshot(), false))
}

// handleAbort stops the current render
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.controller.Abort()
	s.broadcastSnapshot(false)
	writeJSON(w, http.StatusOK, newSnapshotResponse(s.controller.Snapshot(), false))
}

// handleDismiss clears a displayed error
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.controller.DismissError()
	s.broadcastSnapshot(false)
	writeJSON(w, http.StatusOK, newSnapshotResponse(s.controller.Snapshot(), false))
}

// handleSnapshot returns the session state without the image
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSnapshotResponse(s.controller.Snapshot(), false))
}

// handleImage returns the last published image as PNG
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	snap := s.controller.Snapshot()
	if snap.Image == nil {
		writeError(w, http.StatusNotFound, "no image rendered yet")
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, snap.Image); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode image: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}

// handleScene returns the current scene text. With ?format=canonical the
// scene is parsed and re-marshalled, which expands the template for frame 0.
func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	source := s.Source()
	if r.URL.Query().Get("format") == "canonical" {
		expanded, err := template.Expand(source, 0)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		scene, err := model.Parse(expanded)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		data, err := model.Marshal(scene)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		source = string(data)
	}
	w.Header().Set("Content-Type", "application/yaml")
	io.WriteString(w, source)
}

// helpResponse is one entry of the scene format documentation
type helpResponse struct {
	Path      string   `json:"path"`
	FieldType string   `json:"fieldType"`
	Text      string   `json:"text"`
	Fields    []string `json:"fields,omitempty"`
}

// handleHelp looks up ?path=a.b.c in the scene documentation tree
func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	var path []string
	if raw != "" {
		path = strings.Split(raw, ".")
	}
	info, ok := model.LookupDocumentation(path)
	if !ok {
		writeError(w, http.StatusNotFound, "no documentation for "+raw)
		return
	}

	name := "scene"
	if len(path) > 0 {
		name = path[len(path)-1]
	}
	resp := helpResponse{
		Path:      raw,
		FieldType: info.FieldType.String(),
		Text:      model.Describe(name, info),
	}
	if info.Structure != nil {
		resp.Fields = info.Structure.FieldNames()
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseIntParam parses an optional integer query value within [lo, hi]
func parseIntParam(value string, fallback, lo, hi int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d is outside [%d, %d]", n, lo, hi)
	}
	return n, nil
}

// imageToBase64PNG converts an image to base64-encoded PNG
func imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
