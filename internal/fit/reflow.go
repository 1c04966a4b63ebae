package fit

import (
	"math"
	"strings"

	"github.com/rivo/uniseg"

	"pdf-layout-translator/internal/geometry"
)

// Overflow is how far a laid-out block may exceed its target box on each
// axis before it is shrunk.
const Overflow = 1.5

// Block is a paragraph laid out for drawing.
type Block struct {
	Lines    []string
	FontSize float64
	Leading  float64
	// Width and Height are the extent of the laid-out lines.
	Width  float64
	Height float64
	// Shrunk is set when the block exceeded the overflow box and was scaled down.
	Shrunk bool
}

// Reflow breaks text into lines no wider than the box at fontSize, with the
// leading equal to the font size. A block taller than Overflow times the box
// height is scaled down uniformly until it fits; text is never dropped.
func Reflow(text string, fontSize float64, box geometry.Rectangle, m Measurer) Block {
	if fontSize <= 0 || text == "" || box.Width() <= 0 {
		return Block{}
	}

	lines := Wrap(text, fontSize, box.Width(), m)
	b := Block{
		Lines:    lines,
		FontSize: fontSize,
		Leading:  fontSize,
		Width:    widest(lines, fontSize, m),
		Height:   float64(len(lines)) * fontSize,
	}

	maxW := box.Width() * Overflow
	maxH := box.Height() * Overflow
	if b.Width <= maxW && b.Height <= maxH {
		return b
	}

	scale := math.Min(maxW/b.Width, maxH/b.Height)
	b.FontSize *= scale
	b.Leading *= scale
	b.Width *= scale
	b.Height *= scale
	b.Shrunk = true
	return b
}

// Wrap breaks text greedily at Unicode line-break opportunities so that no
// line is wider than maxWidth. A single unbreakable segment wider than
// maxWidth is split between grapheme clusters.
func Wrap(text string, size, maxWidth float64, m Measurer) []string {
	var lines []string
	var line strings.Builder

	flush := func() {
		lines = append(lines, trimLine(line.String()))
		line.Reset()
	}

	state := -1
	rest := text
	for len(rest) > 0 {
		var seg string
		var mustBreak bool
		seg, rest, mustBreak, state = uniseg.FirstLineSegmentInString(rest, state)

		if line.Len() > 0 && m.Width(trimLine(line.String()+seg), size) > maxWidth {
			flush()
		}

		if line.Len() == 0 && m.Width(trimLine(seg), size) > maxWidth {
			pieces := splitGraphemes(seg, size, maxWidth, m)
			lines = append(lines, pieces[:len(pieces)-1]...)
			line.WriteString(pieces[len(pieces)-1])
		} else {
			line.WriteString(seg)
		}

		if mustBreak && len(rest) > 0 {
			flush()
		}
	}
	if line.Len() > 0 {
		flush()
	}
	return lines
}

func splitGraphemes(seg string, size, maxWidth float64, m Measurer) []string {
	var pieces []string
	var cur strings.Builder
	g := uniseg.NewGraphemes(seg)
	for g.Next() {
		cluster := g.Str()
		if cur.Len() > 0 && m.Width(trimLine(cur.String()+cluster), size) > maxWidth {
			pieces = append(pieces, cur.String())
			cur.Reset()
		}
		cur.WriteString(cluster)
	}
	return append(pieces, cur.String())
}

func trimLine(s string) string {
	return strings.TrimRight(s, " \t\r\n\u3000")
}

func widest(lines []string, size float64, m Measurer) float64 {
	w := 0.0
	for _, l := range lines {
		w = math.Max(w, m.Width(l, size))
	}
	return w
}
