package overlay

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultAscentRatio places the first baseline below the top of a text box
// when a font does not specify its own ratio.
const DefaultAscentRatio = 0.88

var coreFonts = map[string]bool{
	"courier": true, "helvetica": true, "arial": true, "times": true,
	"symbol": true, "zapfdingbats": true,
}

// Font describes the typeface used for translated text. A font without Data
// must name one of the PDF core fonts, which only cover Latin-1.
type Font struct {
	Family      string
	Path        string
	Data        []byte
	AscentRatio float64
}

// LoadFont reads the font file at path. An empty path selects the core font
// named by family.
func LoadFont(family, path string) (Font, error) {
	f := Font{Family: family, Path: path, AscentRatio: DefaultAscentRatio}
	if path == "" {
		if !coreFonts[strings.ToLower(family)] {
			return Font{}, fmt.Errorf("font %q is not a core font and no font file was given", family)
		}
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Font{}, fmt.Errorf("failed to read font %s: %w", path, err)
	}
	f.Data = data
	return f, nil
}

// IsCore reports whether the font is a built-in PDF font.
func (f Font) IsCore() bool {
	return len(f.Data) == 0
}

func (f Font) ascent() float64 {
	if f.AscentRatio > 0 {
		return f.AscentRatio
	}
	return DefaultAscentRatio
}

// encode converts text for the font's encoding. Core fonts get cp1252, the
// encoding fpdf declares for them, with unsupported runes replaced.
func (f Font) encode(text string) string {
	if !f.IsCore() {
		return text
	}
	// Encoders carry state, so each call gets its own.
	s, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).String(text)
	if err != nil {
		return text
	}
	return s
}
