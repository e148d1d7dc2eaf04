package loaders

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"

	"github.com/df07/go-scene-preview/pkg/core"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder
)

// ImageData contains loaded image data as Vec3 color array
type ImageData struct {
	Width  int
	Height int
	Pixels []core.Vec3
}

// decodableImages are the sniffed kinds with a registered decoder
var decodableImages = map[string]bool{
	"png": true, "jpg": true, "gif": true, "bmp": true, "tif": true, "webp": true,
}

// LoadImage loads a PNG, JPEG, GIF, BMP, TIFF or WebP image and converts it
// to a Vec3 color array. The format is sniffed from the file contents.
func LoadImage(filename string) (*ImageData, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, loadError(filename, err)
	}
	imageData, err := DecodeImage(data)
	if err != nil {
		return nil, loadError(filename, err)
	}
	return imageData, nil
}

// DecodeImage decodes image bytes into a Vec3 color array
func DecodeImage(data []byte) (*ImageData, error) {
	kind, err := filetype.Image(data)
	if err != nil || !decodableImages[kind.Extension] {
		return nil, fmt.Errorf("%w: not a PNG, JPEG, GIF, BMP, TIFF or WebP image", ErrUnsupportedFormat)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", kind.Extension, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	pixels := make([]core.Vec3, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// RGBA returns uint32 in [0, 65535], convert to [0, 1]
			pixels[y*width+x] = core.NewVec3(
				float64(r)/65535.0,
				float64(g)/65535.0,
				float64(b)/65535.0,
			)
		}
	}

	return &ImageData{
		Width:  width,
		Height: height,
		Pixels: pixels,
	}, nil
}
