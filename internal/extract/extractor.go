// Package extract recovers positioned words from a PDF page's text layer.
package extract

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"pdf-layout-translator/internal/compose"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/paragraph"
)

const (
	// ascentRatio and descentRatio approximate a glyph box from the baseline.
	ascentRatio  = 0.8
	descentRatio = 0.2
	// wordGapRatio is the horizontal gap, relative to font size, that
	// separates two words even without a space glyph.
	wordGapRatio = 0.25
	// rowToleranceRatio is the baseline difference, relative to font size,
	// within which glyphs share a row.
	rowToleranceRatio = 0.3
	// defaultFontSize is assumed when the text layer reports none.
	defaultFontSize = 10.0
)

// Word is a run of glyphs with its box in page space.
type Word struct {
	Text string
	Rect geometry.Rectangle
}

// Extractor reads word fragments with ledongthuc/pdf.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the words on the first page of page.Path, top row first,
// with boxes mapped into image space by m.
func (e *Extractor) Extract(ctx context.Context, page compose.Page, m geometry.Mapper) (frags []paragraph.Fragment, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(page.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page %d: %w", page.Number, err)
	}
	defer f.Close()

	// The text layer parser panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			frags = nil
			err = fmt.Errorf("failed to read text of page %d: %v", page.Number, rec)
		}
	}()

	if r.NumPage() < 1 {
		return nil, nil
	}
	p := r.Page(1)
	if p.V.IsNull() {
		return nil, nil
	}

	glyphs := FillWidths(p.Content().Text, newCoreMetrics().Width)
	rows := Rows(glyphs)
	for _, row := range rows {
		for _, w := range GroupWords(row) {
			frags = append(frags, paragraph.Fragment{Rect: m.ToImage(w.Rect), Text: w.Text})
		}
	}

	logger.Debug("text fragments extracted",
		logger.Int("page", page.Number),
		logger.Int("glyphs", len(glyphs)),
		logger.Int("rows", len(rows)),
		logger.Int("fragments", len(frags)))
	return frags, nil
}

// WidthFunc measures s set in font at size points.
type WidthFunc func(font, s string, size float64) float64

// FillWidths returns a copy of texts, in content-stream order, where glyphs
// without a width get one from measure. A font without a /Widths array
// leaves the text cursor in place, so such glyphs are laid out one after
// another from the position of the first glyph of their run.
func FillWidths(texts []pdf.Text, measure WidthFunc) []pdf.Text {
	out := make([]pdf.Text, len(texts))
	var prev pdf.Text
	var prevEnd float64
	prevMeasured := false

	for i, t := range texts {
		raw := t
		if t.W <= 0 {
			size := t.FontSize
			if size <= 0 {
				size = defaultFontSize
			}
			if prevMeasured && raw.X == prev.X && raw.Y == prev.Y {
				t.X = prevEnd
			}
			t.W = measure(t.Font, t.S, size)
			prevMeasured = true
		} else {
			prevMeasured = false
		}
		out[i] = t
		prev = raw
		prevEnd = t.X + t.W
	}
	return out
}

// Rows groups glyphs sharing a baseline, top row first, each row ordered
// left to right. Glyphs at the same position keep their input order.
func Rows(texts []pdf.Text) [][]pdf.Text {
	sorted := append([]pdf.Text(nil), texts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows [][]pdf.Text
	var row []pdf.Text
	var rowY float64
	for _, t := range sorted {
		size := t.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		if len(row) > 0 && math.Abs(t.Y-rowY) > rowToleranceRatio*size {
			rows = append(rows, row)
			row = nil
		}
		if len(row) == 0 {
			rowY = t.Y
		}
		row = append(row, t)
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool { return r[i].X < r[j].X })
	}
	return rows
}

// GroupWords joins consecutive glyphs of one text row into words. A word
// ends at a whitespace glyph or at a horizontal gap wider than a quarter of
// the font size.
func GroupWords(texts []pdf.Text) []Word {
	var words []Word
	var sb strings.Builder
	var box geometry.Rectangle
	var prevEnd float64
	open := false

	closeWord := func() {
		if open {
			if text := strings.TrimSpace(sb.String()); text != "" {
				words = append(words, Word{Text: text, Rect: box})
			}
		}
		sb.Reset()
		open = false
	}

	for _, t := range texts {
		if strings.TrimFunc(t.S, unicode.IsSpace) == "" {
			closeWord()
			continue
		}

		size := t.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		glyph := geometry.Rectangle{
			X1: t.X,
			Y1: t.Y - descentRatio*size,
			X2: t.X + math.Max(t.W, 0),
			Y2: t.Y + ascentRatio*size,
		}

		if open && t.X-prevEnd > wordGapRatio*size {
			closeWord()
		}

		if open {
			box = box.Union(glyph)
		} else {
			box = glyph
			open = true
		}
		sb.WriteString(t.S)
		prevEnd = glyph.X2
	}
	closeWord()
	return words
}
