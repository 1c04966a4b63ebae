package extract

import (
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"pdf-layout-translator/internal/fit"
)

// coreMetrics measures glyphs of the standard PDF fonts with fpdf's width
// tables. Other fonts fall back to an estimate. Not safe for concurrent use.
type coreMetrics struct {
	doc *fpdf.Fpdf
}

func newCoreMetrics() *coreMetrics {
	return &coreMetrics{doc: fpdf.New("P", "pt", "A4", "")}
}

// Width implements WidthFunc.
func (c *coreMetrics) Width(font, s string, size float64) float64 {
	family, style, ok := coreFamily(font)
	if !ok {
		return fit.EstimateMeasurer{}.Width(s, size)
	}

	c.doc.SetFont(family, style, size)
	if !c.doc.Ok() {
		c.doc.ClearError()
		return fit.EstimateMeasurer{}.Width(s, size)
	}
	enc, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).String(s)
	if err != nil {
		return fit.EstimateMeasurer{}.Width(s, size)
	}
	return c.doc.GetStringWidth(enc)
}

// coreFamily maps a base font name such as "Helvetica-BoldOblique" or
// "Arial,Bold" to an fpdf core family and style.
func coreFamily(base string) (family, style string, ok bool) {
	name := strings.ToLower(base)
	switch {
	case strings.HasPrefix(name, "helvetica"), strings.HasPrefix(name, "arial"):
		family = "Helvetica"
	case strings.HasPrefix(name, "times"):
		family = "Times"
	case strings.HasPrefix(name, "courier"):
		family = "Courier"
	case name == "symbol":
		return "Symbol", "", true
	case name == "zapfdingbats":
		return "ZapfDingbats", "", true
	default:
		return "", "", false
	}

	if strings.Contains(name, "bold") {
		style += "B"
	}
	if strings.Contains(name, "italic") || strings.Contains(name, "oblique") {
		style += "I"
	}
	return family, style, true
}
