package server

import (
	"bufio"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-scene-preview/pkg/config"
	"github.com/df07/go-scene-preview/pkg/model"
)

const testScene = `render_configuration:
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

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Render.Width = 32
	cfg.Render.Height = 24
	cfg.Render.TileSize = 4
	cfg.Render.Workers = 2
	cfg.Server.PollInterval = config.Duration(5 * time.Millisecond)
	return cfg
}

// newTestServer returns a server whose poll loop runs for the test
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(testConfig(), nil, t.TempDir())
	go s.run(t.Context())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.controller.Abort()
	})
	return s, ts
}

func postScene(t *testing.T, ts *httptest.Server, query, scene string) (int, SnapshotResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/render"+query, "application/yaml", strings.NewReader(scene))
	require.NoError(t, err)
	defer resp.Body.Close()
	var snap SnapshotResponse
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusUnprocessableEntity {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	}
	return resp.StatusCode, snap
}

func getSnapshot(t *testing.T, ts *httptest.Server) SnapshotResponse {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	var snap SnapshotResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func waitForState(t *testing.T, ts *httptest.Server, state string) SnapshotResponse {
	t.Helper()
	var snap SnapshotResponse
	require.Eventually(t, func() bool {
		snap = getSnapshot(t, ts)
		return snap.State == state
	}, 5*time.Second, 10*time.Millisecond, "state never became %s", state)
	return snap
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRenderToCompletion(t *testing.T) {
	_, ts := newTestServer(t)

	status, snap := postScene(t, ts, "", testScene)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Empty(t, snap.Error)

	done := waitForState(t, ts, "idle")
	assert.Equal(t, 1.0, done.Progress)
	assert.Equal(t, 3, done.Sample)
	assert.True(t, done.HasImage)
	assert.Empty(t, done.ImageData, "snapshot endpoint does not carry the image")

	resp, err := http.Get(ts.URL + "/api/image")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())
}

func TestRenderUsesTargetSize(t *testing.T) {
	s, ts := newTestServer(t)
	scene := strings.Replace(testScene, "custom:\n      width: 8\n      height: 6", "quarter_screen: {}", 1)

	status, _ := postScene(t, ts, "?width=40&height=20", scene)
	require.Equal(t, http.StatusAccepted, status)
	waitForState(t, ts, "idle")

	assert.Equal(t, 40, s.Target().Width)
	snap := s.controller.Snapshot()
	require.NotNil(t, snap.Image)
	assert.Equal(t, 10, snap.Image.Bounds().Dx())
	assert.Equal(t, 5, snap.Image.Bounds().Dy())
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		scene  string
		status int
	}{
		{"width not a number", "?width=abc", testScene, http.StatusBadRequest},
		{"width too large", "?width=8000", testScene, http.StatusBadRequest},
		{"height zero", "?height=0", testScene, http.StatusBadRequest},
		{"unknown field", "", testScene + "bogus: 1\n", http.StatusUnprocessableEntity},
		{"template error", "", "{{ 1 + }}", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t)
			status, snap := postScene(t, ts, tt.query, tt.scene)
			assert.Equal(t, tt.status, status)
			if status == http.StatusUnprocessableEntity {
				assert.Equal(t, "errored", snap.State)
				assert.NotEmpty(t, snap.Error)
			}
		})
	}
}

func TestErrorRecovery(t *testing.T) {
	_, ts := newTestServer(t)

	status, _ := postScene(t, ts, "", "world: [")
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "errored", getSnapshot(t, ts).State)

	resp, err := http.Post(ts.URL+"/api/dismiss", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "idle", getSnapshot(t, ts).State)

	status, _ = postScene(t, ts, "", testScene)
	require.Equal(t, http.StatusAccepted, status)
	snap := waitForState(t, ts, "idle")
	assert.Empty(t, snap.Error)
	assert.True(t, snap.HasImage)
}

func TestImageBeforeRender(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/image")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAbort(t *testing.T) {
	_, ts := newTestServer(t)
	slow := strings.Replace(testScene, "samples_per_pixel: 3", "samples_per_pixel: 100000", 1)

	status, _ := postScene(t, ts, "", slow)
	require.Equal(t, http.StatusAccepted, status)

	resp, err := http.Post(ts.URL+"/api/abort", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var snap SnapshotResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "idle", snap.State)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestScene(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/scene")
	require.NoError(t, err)
	body := new(strings.Builder)
	_, err = bufio.NewReader(resp.Body).WriteTo(body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultScene, body.String())

	resp, err = http.Get(ts.URL + "/api/scene?format=canonical")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	canonical := new(strings.Builder)
	_, err = bufio.NewReader(resp.Body).WriteTo(canonical)
	require.NoError(t, err)
	_, err = model.Parse(canonical.String())
	assert.NoError(t, err, "canonical scene should parse again")
}

func TestHelp(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/help?path=camera")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var help helpResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&help))
	assert.Equal(t, "camera", help.Path)
	assert.Contains(t, help.Fields, "look_from")
	assert.True(t, strings.HasPrefix(help.Text, "camera ("))

	missing, err := http.Get(ts.URL + "/api/help?path=camera.no_such_field")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestEventStream(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	next := func() string {
		select {
		case line := <-lines:
			return line
		case <-time.After(5 * time.Second):
			require.FailNow(t, "timeout waiting for event")
			return ""
		}
	}
	assert.Equal(t, "event: snapshot", next())
	assert.True(t, strings.HasPrefix(next(), "data: {"))

	status, _ := postScene(t, ts, "", testScene)
	require.Equal(t, http.StatusAccepted, status)

	sawConsole := false
	sawIdle := false
	for !sawIdle || !sawConsole {
		line := next()
		if line == "event: console" {
			sawConsole = true
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"state":"idle"`) &&
			strings.Contains(line, `"generation":1`) {
			sawIdle = true
		}
	}
}

func TestWebSocket(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var event SSEEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "snapshot", event.Type)

	status, _ := postScene(t, ts, "", testScene)
	require.Equal(t, http.StatusAccepted, status)

	sawImage := false
	for {
		require.NoError(t, conn.ReadJSON(&event))
		if event.Type != "snapshot" {
			continue
		}
		var snap SnapshotResponse
		require.NoError(t, json.Unmarshal([]byte(event.Data), &snap))
		if snap.Generation == 1 && snap.ImageData != "" {
			sawImage = true
		}
		if snap.Generation == 1 && snap.State == "idle" {
			assert.True(t, sawImage, "a snapshot of the render should carry the image")
			return
		}
	}
}

func TestBroadcastSnapshot_EncodesEachImageOnce(t *testing.T) {
	s := NewServer(testConfig(), nil, t.TempDir())
	t.Cleanup(s.controller.Abort)
	events := s.hub.subscribe()
	defer s.hub.unsubscribe(events)

	renderToIdle := func() {
		require.NoError(t, s.Render(testScene, s.Target()))
		<-events // Rendering snapshot from Render
		require.Eventually(t, func() bool {
			s.controller.Poll()
			return s.controller.Snapshot().State.String() == "idle"
		}, 5*time.Second, time.Millisecond)
	}
	broadcast := func() SnapshotResponse {
		s.broadcastSnapshot(true)
		var snap SnapshotResponse
		require.NoError(t, json.Unmarshal([]byte((<-events).Data), &snap))
		return snap
	}

	renderToIdle()
	first := broadcast()
	assert.True(t, first.HasImage)
	assert.NotEmpty(t, first.ImageData)

	again := broadcast()
	assert.True(t, again.HasImage)
	assert.Empty(t, again.ImageData, "unchanged image should not be sent again")

	renderToIdle()
	assert.NotEmpty(t, broadcast().ImageData, "a new render publishes a new image")
}

func TestWatchReloadsScene(t *testing.T) {
	s, ts := newTestServer(t)
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testScene), 0644))

	require.NoError(t, s.LoadFile(path))
	waitForState(t, ts, "idle")

	require.NoError(t, s.Watch(t.Context(), path, 20*time.Millisecond))
	edited := strings.Replace(testScene, "radius: 1", "radius: 0.5", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0644))

	require.Eventually(t, func() bool {
		return s.Source() == edited
	}, 5*time.Second, 10*time.Millisecond)
	snap := waitForState(t, ts, "idle")
	assert.GreaterOrEqual(t, snap.Generation, uint64(2))
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{"", 7, false},
		{"12", 12, false},
		{"1", 1, false},
		{"0", 0, true},
		{"101", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseIntParam(tt.value, 7, 1, 100)
		if tt.wantErr {
			assert.Error(t, err, tt.value)
			continue
		}
		require.NoError(t, err, tt.value)
		assert.Equal(t, tt.want, got)
	}
}
