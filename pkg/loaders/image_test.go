package loaders

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// testImage is a 2x2 image: white, red / green, blue
func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, A: 255})
	img.Set(0, 1, color.RGBA{G: 255, A: 255})
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	return img
}

func TestLoadImage_Formats(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		encode func(*bytes.Buffer, image.Image) error
	}{
		{"png", "test.png", func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }},
		{"bmp", "test.bmp", func(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) }},
		{"tiff", "test.tiff", func(b *bytes.Buffer, img image.Image) error { return tiff.Encode(b, img, nil) }},
		{"misleading extension", "test.jpg", func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.encode(&buf, testImage()))
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

			imageData, err := LoadImage(path)
			require.NoError(t, err)
			assert.Equal(t, 2, imageData.Width)
			assert.Equal(t, 2, imageData.Height)
			require.Len(t, imageData.Pixels, 4)

			// Row-major order
			expected := []core.Vec3{
				core.NewVec3(1, 1, 1),
				core.NewVec3(1, 0, 0),
				core.NewVec3(0, 1, 0),
				core.NewVec3(0, 0, 1),
			}
			for i, want := range expected {
				assert.InDelta(t, want.X, imageData.Pixels[i].X, 0.01, "pixel %d", i)
				assert.InDelta(t, want.Y, imageData.Pixels[i].Y, 0.01, "pixel %d", i)
				assert.InDelta(t, want.Z, imageData.Pixels[i].Z, 0.01, "pixel %d", i)
			}
		})
	}
}

func TestLoadImage_NotFound(t *testing.T) {
	_, err := LoadImage("nonexistent.png")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "nonexistent.png", loadErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadImage_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.png")
	require.NoError(t, os.WriteFile(path, []byte("just some text, not pixels"), 0o644))

	_, err := LoadImage(path)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
