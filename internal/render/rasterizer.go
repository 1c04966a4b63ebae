// Package render rasterizes PDF pages with poppler's pdftoppm.
package render

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"

	"pdf-layout-translator/internal/compose"
	"pdf-layout-translator/internal/logger"
)

// DefaultDPI matches PDF user space, one pixel per point.
const DefaultDPI = 72

// PopplerRasterizer renders pages by running pdftoppm.
type PopplerRasterizer struct {
	binary  string
	tempDir string
}

// NewPopplerRasterizer locates pdftoppm on PATH. Rendered images are written
// below tempDir (the OS temp dir when empty) and removed after decoding.
func NewPopplerRasterizer(tempDir string) (*PopplerRasterizer, error) {
	binary, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm not found, please install poppler-utils " +
			"(Ubuntu/Debian: apt-get install poppler-utils, macOS: brew install poppler)")
	}
	if tempDir != "" {
		if err := os.MkdirAll(tempDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
	}
	return &PopplerRasterizer{binary: binary, tempDir: tempDir}, nil
}

// Render rasterizes the single-page PDF of page at dpi. The image is
// ceil(points * dpi / 72) pixels on each axis.
func (r *PopplerRasterizer) Render(ctx context.Context, page compose.Page, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	dir, err := os.MkdirTemp(r.tempDir, "render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	outputPrefix := filepath.Join(dir, fmt.Sprintf("page_%d", page.Number))
	args := []string{
		"-f", "1",
		"-l", "1",
		"-png",
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		page.Path,
		outputPrefix,
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	hideWindow(cmd)

	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w, output: %s", err, string(output))
	}

	img, err := loadImage(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	logger.Debug("page rasterized",
		logger.Int("page", page.Number),
		logger.Int("dpi", dpi),
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()))
	return img, nil
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	return img, err
}
