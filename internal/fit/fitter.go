package fit

import (
	"math"
	"unicode/utf8"

	"pdf-layout-translator/internal/geometry"
)

// Fitter chooses a font size for text drawn into box.
type Fitter interface {
	FontSize(box geometry.Rectangle, text string) float64
}

// AreaFitter sizes text so that every character gets an equal square share
// of the box: floor(sqrt(width*height / characters)). Characters are counted
// as runes. Empty text or an empty box yields 0.
type AreaFitter struct{}

// FontSize implements Fitter.
func (AreaFitter) FontSize(box geometry.Rectangle, text string) float64 {
	n := utf8.RuneCountInString(text)
	area := box.Area()
	if n == 0 || area <= 0 {
		return 0
	}
	return math.Floor(math.Sqrt(area / float64(n)))
}

// DefaultMaxFontSize bounds the MeasuredFitter search.
const DefaultMaxFontSize = 100

// MeasuredFitter finds the largest whole font size at which the wrapped text
// fits inside the box using real glyph widths. It returns 0 when nothing
// fits even at 1pt.
type MeasuredFitter struct {
	Measurer Measurer
	MaxSize  int
}

// FontSize implements Fitter.
func (f MeasuredFitter) FontSize(box geometry.Rectangle, text string) float64 {
	if text == "" || box.Width() <= 0 || box.Height() <= 0 {
		return 0
	}
	m := f.Measurer
	if m == nil {
		m = EstimateMeasurer{}
	}
	hi := f.MaxSize
	if hi <= 0 {
		hi = DefaultMaxFontSize
	}

	best := 0
	lo := 1
	for lo <= hi {
		mid := (lo + hi) / 2
		if fits(text, float64(mid), box, m) {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return float64(best)
}

func fits(text string, size float64, box geometry.Rectangle, m Measurer) bool {
	lines := Wrap(text, size, box.Width(), m)
	if float64(len(lines))*size > box.Height() {
		return false
	}
	return widest(lines, size, m) <= box.Width()
}
