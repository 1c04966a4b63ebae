// Package fit decides how large translated text is drawn and how it is
// broken into lines inside a replacement region.
package fit

import (
	"fmt"
	"os"
	"sync"

	"github.com/rivo/uniseg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// Measurer reports the advance width of text at a font size, in points.
type Measurer interface {
	Width(text string, size float64) float64
}

// EstimateMeasurer approximates widths from character classes: wide (East
// Asian) runes take a full em, spaces a quarter em and everything else half
// an em.
type EstimateMeasurer struct{}

// Width implements Measurer.
func (EstimateMeasurer) Width(text string, size float64) float64 {
	width := 0.0
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t':
			width += 0.25 * size
		default:
			switch uniseg.StringWidth(string(r)) {
			case 0:
			case 2:
				width += 1.0 * size
			default:
				width += 0.5 * size
			}
		}
	}
	return width
}

// FaceMeasurer measures glyph advances of a TrueType/OpenType font.
// Faces are created per size on demand and cached.
type FaceMeasurer struct {
	font *sfnt.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

// NewFaceMeasurer parses font data.
func NewFaceMeasurer(data []byte) (*FaceMeasurer, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &FaceMeasurer{font: f, faces: make(map[float64]font.Face)}, nil
}

// NewFaceMeasurerFromFile reads and parses a font file.
func NewFaceMeasurerFromFile(path string) (*FaceMeasurer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", path, err)
	}
	return NewFaceMeasurer(data)
}

// Width implements Measurer.
func (m *FaceMeasurer) Width(text string, size float64) float64 {
	if size <= 0 || text == "" {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	face, ok := m.faces[size]
	if !ok {
		var err error
		// At 72 DPI one pixel is one point.
		face, err = opentype.NewFace(m.font, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
		if err != nil {
			return EstimateMeasurer{}.Width(text, size)
		}
		m.faces[size] = face
	}
	return float64(font.MeasureString(face, text)) / 64
}

// Close releases the cached faces.
func (m *FaceMeasurer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for size, face := range m.faces {
		face.Close()
		delete(m.faces, size)
	}
	return nil
}
