package debug

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// StencilDump writes stencil buffer contents to PNG files so portal masks
// can be inspected. Each stencil level gets its own palette colour.
type StencilDump struct {
	outputDir string
	prefix    string
}

// NewStencilDump creates a dumper writing prefix_<timestamp>.png files.
func NewStencilDump(outputDir, prefix string) *StencilDump {
	return &StencilDump{outputDir: outputDir, prefix: prefix}
}

// stencilPalette covers the 6-bit range portal masks use.
var stencilPalette = func() color.Palette {
	p := make(color.Palette, 64)
	p[0] = color.Black
	for i := 1; i < len(p); i++ {
		// Spread hues so adjacent levels are easy to tell apart.
		h := uint8(i * 97)
		p[i] = color.RGBA{R: h, G: 255 - h, B: uint8(i * 4), A: 255}
	}
	return p
}()

// Image converts bottom-up stencil rows into a top-down paletted image.
func (s *StencilDump) Image(stencil []byte, width, height int) (*image.Paletted, error) {
	if len(stencil) != width*height {
		return nil, fmt.Errorf("stencil data size mismatch: expected %d, got %d", width*height, len(stencil))
	}
	img := image.NewPaletted(image.Rect(0, 0, width, height), stencilPalette)
	for y := 0; y < height; y++ {
		src := stencil[(height-1-y)*width : (height-y)*width]
		dst := img.Pix[y*img.Stride : y*img.Stride+width]
		for x, v := range src {
			dst[x] = v & 0x3f
		}
	}
	return img, nil
}

// Save writes the stencil image and returns the file name.
func (s *StencilDump) Save(stencil []byte, width, height int) (string, error) {
	img, err := s.Image(stencil, width, height)
	if err != nil {
		return "", err
	}

	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}
	name := fmt.Sprintf("%s_%s.png", s.prefix, time.Now().Format("2006-01-02_15-04-05"))
	if s.outputDir != "" {
		name = filepath.Join(s.outputDir, name)
	}

	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return name, nil
}
