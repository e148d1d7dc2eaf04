package logx

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFromFlags(t *testing.T) {
	tests := []struct {
		name      string
		vv, v, q  bool
		wantLevel slog.Level
	}{
		{"default", false, false, false, slog.LevelWarn},
		{"verbose", false, true, false, slog.LevelInfo},
		{"very verbose wins", true, true, true, slog.LevelDebug},
		{"quiet", false, false, true, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLevel, LevelFromFlags(tt.vv, tt.v, tt.q))
		})
	}
}

func TestHandler_WritesAttrsAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo)).With("job", 3).WithGroup("mesh")

	logger.Debug("hidden")
	logger.Info("loaded", "path", "bunny.obj")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "loaded")
	assert.Contains(t, out, "job=3")
	assert.Contains(t, out, "mesh.path=bunny.obj")
}
