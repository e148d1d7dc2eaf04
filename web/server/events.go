package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/df07/go-scene-preview/pkg/session"
)

// SSEEvent is one event pushed to a browser, over SSE or websocket
type SSEEvent struct {
	Type string `json:"type"` // "snapshot", "console"
	Data string `json:"data"` // JSON-encoded data
}

// SnapshotResponse is the JSON form of a session snapshot
type SnapshotResponse struct {
	State             string  `json:"state"`
	Progress          float64 `json:"progress"`
	FPS               float64 `json:"fps"`
	EstimatedTimeLeft int64   `json:"etaMs"`
	Sample            int     `json:"sample"`
	Error             string  `json:"error,omitempty"`
	Generation        uint64  `json:"generation"`
	HasImage          bool    `json:"hasImage"`
	ImageData         string  `json:"imageData,omitempty"` // Base64 encoded PNG
}

func newSnapshotResponse(snap session.Snapshot, withImage bool) SnapshotResponse {
	resp := SnapshotResponse{
		State:             snap.State.String(),
		Progress:          snap.Progress,
		FPS:               snap.FPS,
		EstimatedTimeLeft: snap.EstimatedTimeLeft.Milliseconds(),
		Sample:            snap.Sample,
		Generation:        snap.Generation,
		HasImage:          snap.Image != nil,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	if withImage && snap.Image != nil {
		if data, err := imageToBase64PNG(snap.Image); err == nil {
			resp.ImageData = data
		}
	}
	return resp
}

// hub fans events out to every connected browser. Slow subscribers miss
// events rather than blocking the poll loop.
type hub struct {
	mu   sync.Mutex
	subs map[chan SSEEvent]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan SSEEvent]struct{})}
}

func (h *hub) subscribe() chan SSEEvent {
	ch := make(chan SSEEvent, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) publish(event SSEEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			// Subscriber full, skip
		}
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// broadcastSnapshot pushes the current snapshot to every subscriber. With
// withImage the image is only encoded when it differs from the one last
// broadcast.
func (s *Server) broadcastSnapshot(withImage bool) {
	if s.hub.len() == 0 {
		return
	}
	snap := s.controller.Snapshot()
	if withImage {
		s.mu.Lock()
		withImage = snap.Image != s.lastImage
		if withImage {
			s.lastImage = snap.Image
		}
		s.mu.Unlock()
	}
	data, err := json.Marshal(newSnapshotResponse(snap, withImage))
	if err != nil {
		return
	}
	s.hub.publish(SSEEvent{Type: "snapshot", Data: string(data)})
}

func (s *Server) broadcastConsole(msg ConsoleMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.hub.publish(SSEEvent{Type: "console", Data: string(data)})
}

// setSSEHeaders sets the required headers for Server-Sent Events
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// sendSSEEvent writes one SSE event and flushes it
func sendSSEEvent(w http.ResponseWriter, event SSEEvent) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming not supported")
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// handleEvents streams snapshots and console messages as Server-Sent Events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	setSSEHeaders(w)

	events := s.hub.subscribe()
	defer s.hub.unsubscribe(events)

	current, err := s.currentSnapshotEvent()
	if err != nil || sendSSEEvent(w, current) != nil {
		return
	}
	s.writeEvents(r.Context(), events, func(event SSEEvent) error {
		return sendSSEEvent(w, event)
	})
}

// handleWebSocket streams the same events as handleEvents over a websocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only detect the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := s.hub.subscribe()
	defer s.hub.unsubscribe(events)

	current, err := s.currentSnapshotEvent()
	if err != nil || conn.WriteJSON(current) != nil {
		return
	}
	s.writeEvents(ctx, events, func(event SSEEvent) error {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteJSON(event)
	})
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// writeEvents forwards events to write until ctx is done or a write fails
func (s *Server) writeEvents(ctx context.Context, events <-chan SSEEvent, write func(SSEEvent) error) {
	for {
		select {
		case event := <-events:
			if err := write(event); err != nil {
				// Client disconnected during write
				return
			}
		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

func (s *Server) currentSnapshotEvent() (SSEEvent, error) {
	data, err := json.Marshal(newSnapshotResponse(s.controller.Snapshot(), true))
	if err != nil {
		return SSEEvent{}, err
	}
	return SSEEvent{Type: "snapshot", Data: string(data)}, nil
}
